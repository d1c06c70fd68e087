package tasks

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suteetoe/thing-service/internal/app"
	"github.com/suteetoe/thing-service/internal/assets"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/internal/server"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/database"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"go.uber.org/zap"
)

func (r *runner) routesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print out all defined routes in match order, with names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := server.New(server.Deps{
				Config: &config.Config{
					ServiceName: serviceName,
					Auth:        config.AuthConfig{Required: true, CookieName: "_thing_session"},
				},
				JWT: jwtutil.NewJWTUtil(&jwtutil.JWTConfig{}),
			})
			if err != nil {
				return err
			}
			printRoutes(cmd.OutOrStdout(), srv.Routes())
			return nil
		},
	}
}

func printRoutes(out io.Writer, routes []server.RouteInfo) {
	nameWidth, methodWidth, pathWidth := len("Prefix"), len("Verb"), len("URI Pattern")
	for _, r := range routes {
		nameWidth = max(nameWidth, len(r.Name))
		methodWidth = max(methodWidth, len(r.Method))
		pathWidth = max(pathWidth, len(r.Path))
	}

	fmt.Fprintf(out, "%*s %-*s %-*s %s\n", nameWidth, "Prefix", methodWidth, "Verb", pathWidth, "URI Pattern", "Controller#Action")
	for _, r := range routes {
		fmt.Fprintf(out, "%*s %-*s %-*s %s\n", nameWidth, r.Name, methodWidth, r.Method, pathWidth, r.Path, r.Action)
	}
}

func (r *runner) assetsPrecompileCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "assets:precompile",
		Short: "Compile all the assets with digests into public/assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := assets.NewPipeline()
			if err != nil {
				return err
			}
			written, err := pipeline.Precompile(output)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Writing %s\n", filepath.ToSlash(path))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", filepath.Join("public", "assets"), "directory to write the compiled assets to")
	return cmd
}

func (r *runner) serverCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(serviceName)
			if err != nil {
				return err
			}
			cfg.Server.Env = r.env
			cfg.Database.ConfigPath = r.configPath
			if port != "" {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			r.log.Info("Starting "+serviceName, cfg.LogConfig()...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (default: SERVER_PORT or 3000)")
	return cmd
}

func (r *runner) thingsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "things:list",
		Short: "List every thing with its id, name and description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			things, closeDB, err := r.thingRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			all, err := things.All(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No things yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, t := range all {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Description)
			}
			return w.Flush()
		},
	}
}

func (r *runner) thingsCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "things:count",
		Short: "Print how many things are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			things, closeDB, err := r.thingRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			count, err := things.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pluralize(count, "thing"))
			return nil
		},
	}
}

func (r *runner) thingRepository() (repository.ThingRepository, func(), error) {
	settings, err := r.databaseSettings()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(settings, r.log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			r.log.Warn("Failed to close database", zap.Error(err))
		}
	}
	return repository.NewGormThingRepository(db, nil), closeDB, nil
}
