// Package main starts the shop delivery bridge and handles termination.
//
// The process is a transport adapter between shop purchase notifications and
// the game server console; gameplay state stays on the game server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	delivercmd "github.com/l0lusurname/DonutShopAutoDeliver/internal/cmd/deliver"
)

func main() {
	cfg, err := delivercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DELIVER] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := delivercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
