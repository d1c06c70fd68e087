// Command thingctl runs the maintenance tasks of the thing service.
package main

import (
	"os"

	"github.com/suteetoe/thing-service/internal/tasks"
)

func main() {
	if err := tasks.NewRootCommand(tasks.Options{}).Execute(); err != nil {
		os.Exit(1)
	}
}
