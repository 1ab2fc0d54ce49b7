package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"sifsim/internal/logging"
)

var (
	name    = "sifsim"
	version = "v0.0.1-default"
	commit  = ""
)

func main() {
	initLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fatalErr(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    name,
		Version: fmt.Sprintf("%s - (commit: %s)", version, commit),
		Usage:   "train and evaluate SIF sentence relatedness models",
		Flags:   trainFlags(),
		Action:  trainAction,
		Commands: []*cli.Command{
			newRunsCmd(),
		},
	}
}

func fatalErr(err error) {
	if err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func initLogging() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.SetFormatter(&logging.ConsoleFormatter{})
}
