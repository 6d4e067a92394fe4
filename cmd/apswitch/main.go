package main

import (
	"fmt"
	"os"

	"github.com/turtacn/apswitch/internal/cli"
	"github.com/turtacn/apswitch/pkg/logger"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger.Log != nil {
				logger.Log.Error("Panic recovered", "panic", r)
			} else {
				fmt.Fprintf(os.Stderr, "Panic recovered: %v\n", r)
			}
			os.Exit(1)
		}
	}()

	cli.Execute(version)
}

// Personal.AI order the ending
