// Command songdubd runs the dubbing daemon with the configuration found at
// $SONGDUB_CONFIG or the default location. It is the entry point for service
// managers; interactive use goes through `songdub serve`.
package main

import (
	"context"
	"log"
	"os"

	"songdub/internal/config"
	"songdub/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("SONGDUB_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("songdubd: %v", err)
	}
}
