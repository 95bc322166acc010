// Package main runs the wallpaper command line client.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	wallpapercmd "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/cmd/wallpaper"
)

func main() {
	cfg, err := wallpapercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[WALLPAPER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := wallpapercmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("%s: %v", cfg.Command, err)
	}
}
