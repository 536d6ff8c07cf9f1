package main

import (
	"fmt"
	"os"

	"smartschedule/core/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smartschedule:", err)
		os.Exit(1)
	}
}
