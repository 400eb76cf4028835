// Command repsheet searches the upstream repertory and prints
// repertorisation sheets for saved cases.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/giygas/repertory-api/config"
	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/repertory"
)

func main() {
	_ = godotenv.Load()

	// console only, and quiet unless LOG_LEVEL says otherwise
	logging.InitLoggerWithOptions(logging.Options{Env: config.EnvProduction, Level: os.Getenv("LOG_LEVEL")})

	newSearcher := func() (interfaces.RepertorySearcher, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return repertory.NewFromConfig(cfg), nil
	}

	if err := newCLIApp(newSearcher, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	return 1
}
