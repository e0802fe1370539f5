package main

import (
	"log"

	"delphi/internal/cli"
)

// Combined entrypoint: serve, worker, and migrate subcommands.
func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
