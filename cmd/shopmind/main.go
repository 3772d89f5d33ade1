// Command shopmind is the entry point for the conversational product
// discovery assistant. It provides a CLI interface (via Cobra) for one-shot
// searches and an interactive chat, plus an HTTP server exposing the same
// pipeline as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/lmarban/shopmind-go/cmd/shopmind/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
