package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	readingcmd "github.com/arcanahq/arcana.space/internal/cmd/reading"
)

func main() {
	cfg, err := readingcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[READING] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := readingcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
