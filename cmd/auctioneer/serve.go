package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjgoff/auctioneer/internal/coordinator"
	"github.com/tjgoff/auctioneer/pkg/auction"
	"github.com/tjgoff/auctioneer/pkg/auction/ascending"
	"github.com/tjgoff/auctioneer/pkg/config"
	"github.com/tjgoff/auctioneer/pkg/log"
)

var serveFlags struct {
	addr        string
	maxClients  int
	maxWaitTime time.Duration
	sessionID   int
	logLevel    string
}

var serveCmd = &cobra.Command{
	Use:   "serve <config.toml>",
	Short: "Load a schedule from a config file and run it to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":1300", "address to listen on")
	serveCmd.Flags().IntVar(&serveFlags.maxClients, "max-clients", 0, "stop accepting once this many bidders connect (0 = unbounded)")
	serveCmd.Flags().DurationVar(&serveFlags.maxWaitTime, "max-wait-time", 10*time.Second, "how long to wait for bidders before giving up")
	serveCmd.Flags().IntVar(&serveFlags.sessionID, "session-id", 1, "session id every task and client is scoped to")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := log.InitLogger(serveFlags.logLevel); err != nil {
		return err
	}

	graph, specs, goods, err := config.Load(args[0])
	if err != nil {
		return err
	}

	factory := config.NewFactory()
	factory.Register("ascending", ascending.NewTask)

	// Resolve every auction type now, so an unknown type is reported
	// before coordinator.Run binds its listener.
	for _, spec := range specs {
		if _, err := factory.New(spec, auction.Config{}); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return coordinator.Run(ctx, coordinator.Config{
		ListenAddr:  serveFlags.addr,
		MaxClients:  serveFlags.maxClients,
		MaxWaitTime: serveFlags.maxWaitTime,
		SessionID:   serveFlags.sessionID,
		Graph:       graph,
		Specs:       specs,
		Factory:     factory,
		Goods:       goods,
	})
}
