package main

import (
	"fmt"
	"os"

	"github.com/entitycache/graphwire/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
