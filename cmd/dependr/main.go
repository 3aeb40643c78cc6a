package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GESkunkworks/dependr/cmd/dependr/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
