// Package main is the entry point for the transcription orchestration core.
package main

import (
	"os"

	"github.com/jmylchreest/transcribecore/cmd/transcribecored/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
