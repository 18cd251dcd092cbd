package main

import (
	"context"
	"fmt"
	"os"

	"crucible/backend/subproc"
	"crucible/config"
	"crucible/core/version"
	"crucible/runner"
)

func main() {
	// Worker mode dispatches before anything else: the isolated strategy
	// re-executes this binary with an empty environment, so the worker path
	// must not depend on flags or configuration files.
	if len(os.Args) > 1 && os.Args[1] == subproc.WorkerMode {
		os.Exit(subproc.RunWorker(os.Stdin, os.Stdout, os.Stderr))
	}

	configPath, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "crucible:", err)
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crucible:", err)
		os.Exit(2)
	}

	os.Exit(runner.Run(context.Background(), os.Stdin, os.Stdout, cfg))
}

func parseArgs(args []string) (string, error) {
	configPath := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for %s", args[i])
			}
			i++
			configPath = args[i]
		case "-version", "--version":
			fmt.Println("crucible", version.CoreVersion)
			os.Exit(0)
		default:
			return "", fmt.Errorf("unknown argument: %s", args[i])
		}
	}
	return configPath, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: crucible [-config <path>] < request.json")
}
