// Package tasks implements thingctl, the command line task runner of the
// service: database lifecycle, route listing, asset precompilation and the
// things:* maintenance tasks.
package tasks

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	serviceName       = "thing-service"
	defaultEnv        = "development"
	defaultConfigPath = "config/database.yml"
	defaultSeedsPath  = "db/seeds.yml"
)

// Options configure the root command
type Options struct {
	// Out receives task output; defaults to stdout
	Out io.Writer
	// Logger is used instead of building one from LOG_LEVEL
	Logger *zap.Logger
}

type runner struct {
	opts       Options
	log        *zap.Logger
	env        string
	configPath string
	showTasks  bool
}

// NewRootCommand builds thingctl with every task registered
func NewRootCommand(opts Options) *cobra.Command {
	r := &runner{opts: opts, log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "thingctl",
		Short: "Task runner for the thing service",
		Long: `thingctl runs the maintenance tasks of the thing service.

The database is selected by the --env section of the database configuration
(config/database.yml by default). DATABASE_URL, when set, overrides the file.
Run "thingctl -T" to list every task.`,
		SilenceUsage:      true,
		PersistentPreRunE: r.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if r.showTasks {
				printTasks(cmd.Root(), cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}

	root.PersistentFlags().StringVarP(&r.env, "env", "e", "", "environment section to use (default: APP_ENV or development)")
	root.PersistentFlags().StringVar(&r.configPath, "config", "", "database configuration file (default: DATABASE_CONFIG or config/database.yml)")
	root.Flags().BoolVarP(&r.showTasks, "tasks", "T", false, "list the available tasks with descriptions")

	root.AddCommand(r.dbCommands()...)
	root.AddCommand(
		r.routesCommand(),
		r.assetsPrecompileCommand(),
		r.serverCommand(),
		r.thingsListCommand(),
		r.thingsCountCommand(),
	)
	return root
}

// setup loads .env, resolves the environment and builds the logger
func (r *runner) setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if r.env == "" {
		r.env = envOr("APP_ENV", defaultEnv)
	}
	if r.configPath == "" {
		r.configPath = envOr("DATABASE_CONFIG", defaultConfigPath)
	}

	if r.opts.Logger != nil {
		r.log = r.opts.Logger
		logger.SetLogger(r.log)
		return nil
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       envOr("LOG_LEVEL", "info"),
		Environment: r.env,
		ServiceName: "thingctl",
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	r.log = logger.GetLogger()
	return nil
}

func (r *runner) databaseSettings() (*config.DatabaseSettings, error) {
	return config.LoadDatabaseSettings(r.configPath, r.env, os.Getenv("DATABASE_URL"))
}

// printTasks lists the tasks the way rake -T does
func printTasks(root *cobra.Command, out io.Writer) {
	var tasks []*cobra.Command
	width := 0
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" {
			continue
		}
		tasks = append(tasks, c)
		if len(c.Use) > width {
			width = len(c.Use)
		}
	}

	for _, c := range tasks {
		fmt.Fprintf(out, "%s %-*s  # %s\n", root.Name(), width, c.Use, c.Short)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func pluralize(count int64, singular string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %ss", count, singular)
}
