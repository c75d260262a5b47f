package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandwichops/relay/internal/config"
	"github.com/sandwichops/relay/internal/db"
	"github.com/sandwichops/relay/internal/httpapi"
	"github.com/sandwichops/relay/internal/notify"
	"github.com/sandwichops/relay/internal/retention"
	"github.com/sandwichops/relay/internal/ws"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Relay API server",
		Long:  "Runs the HTTP API, the websocket hub, and the trash retention job until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml", "path to Relay config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	gdb, err := db.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	notifiers, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}
	defer func() {
		for _, n := range notifiers {
			if err := n.Close(); err != nil {
				log.Printf("relay: close notifier: %v", err)
			}
		}
	}()

	hub := ws.NewHub(0)

	janitor, err := retention.NewJanitor(retention.JanitorOpts{
		DB:        gdb,
		Config:    cfg.Retention,
		Notifiers: notifiers,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	go janitor.Run(ctx)

	return httpapi.Start(ctx, httpapi.StartOpts{
		DB:   gdb,
		Hub:  hub,
		Port: port,
		Out:  out,
	})
}
