package main

import (
	"context"
	"os"

	"github.com/m-mizutani/fetchex/pkg/cli"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

func main() {
	if err := cli.Run(context.Background(), os.Args); err != nil {
		os.Exit(types.ExitCode(err))
	}
}
