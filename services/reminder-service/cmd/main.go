package main

import (
	"os"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
