package main

import (
	"log"
	"os"

	"github.com/cwbudde/minuitgrad/internal/mptm"
)

func main() {
	// Re-exec'd queue/worker processes never reach rootCmd: they are
	// identified by an environment variable mptm sets on its own
	// children and run their role loop here instead.
	if mptm.RunRoleIfChild() {
		return
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v\n", err)
		os.Exit(1)
	}
}
