package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-settings/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "settingsctl:", err)
		os.Exit(1)
	}
}
