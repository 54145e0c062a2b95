// Command traxx runs the fleet service and queries a running one.
package main

import (
	"os"

	"github.com/turtacn/TRAXX-Intelligence/internal/app"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(cli.CommandDependencies{Serve: app.Serve}); err != nil {
		os.Exit(1)
	}
}

//Personal.AI order the ending
