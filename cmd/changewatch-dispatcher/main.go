package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "changewatch-dispatcher",
		Usage:                 "Check monitored targets for meaningful content changes",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewCheckCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
