package main

import (
	"fmt"
	"os"

	"tradecrew/internal/cli"
	"tradecrew/pkg/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.IsConfig(err) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			fmt.Fprintln(os.Stderr, "Check your environment (or .env file) and try again.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
