// relayclaw relays messages between chat channels and webhooks according
// to operator-configured forwarding rules, managed in-band with +menu and
// direct +add/+remove/+list commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relayclaw/relayclaw/pkg/app"
	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/channels"
	"github.com/relayclaw/relayclaw/pkg/channels/discord"
	"github.com/relayclaw/relayclaw/pkg/channels/telegram"
	"github.com/relayclaw/relayclaw/pkg/config"
	"github.com/relayclaw/relayclaw/pkg/dispatch"
	"github.com/relayclaw/relayclaw/pkg/forward"
	"github.com/relayclaw/relayclaw/pkg/logger"
	"github.com/relayclaw/relayclaw/pkg/rules"
	"github.com/relayclaw/relayclaw/pkg/session"
	"github.com/relayclaw/relayclaw/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayclaw: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg); err != nil {
		logger.ErrorCF("main", "Fatal", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	blobs, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}

	mb := bus.NewMessageBus()
	defer mb.Close()

	transport, err := openTransport(cfg, mb)
	if err != nil {
		return err
	}

	store := rules.NewStore(blobs)
	relay := app.NewRelayService(store, transport)
	router := forward.NewRouter(store,
		forward.NewChannelSink(transport),
		forward.NewWebhookSink(nil))
	dispatcher := dispatch.NewDispatcher(session.NewTracker(), relay, router, transport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", transport.Name(), err)
	}
	defer transport.Disconnect(context.Background())

	logger.InfoCF("main", "relayclaw started", map[string]interface{}{
		"transport": transport.Name(),
		"storage":   cfg.Storage.Backend,
	})

	dispatcher.Run(ctx, mb)

	logger.InfoCF("main", "Shutting down", map[string]interface{}{
		"deliveries": router.DeliveryAttempts(),
	})
	return nil
}

func openStorage(cfg config.StorageConfig) (rules.BlobStorage, error) {
	switch cfg.Backend {
	case config.StorageSQLite:
		return storage.NewSQLiteStore(cfg.SQLitePath)
	default:
		return storage.NewFileStore(cfg.DataDir)
	}
}

func openTransport(cfg config.Config, mb *bus.MessageBus) (channels.Transport, error) {
	switch cfg.Transport {
	case config.TransportTelegram:
		return telegram.New(cfg.Token(), mb), nil
	default:
		return discord.New(cfg.Token(), mb), nil
	}
}
