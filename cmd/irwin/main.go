// Package main provides the irwin CLI for training the engine-assistance
// model and loading the records it trains on.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
