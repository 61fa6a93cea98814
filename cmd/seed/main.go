package main

import (
	"context"
	"flag"
	"log"
	"os"

	seedcmd "github.com/arcanahq/arcana.space/internal/cmd/seed"
)

func main() {
	cfg, err := seedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SEED] ")

	if err := seedcmd.Run(context.Background(), cfg); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}
}
