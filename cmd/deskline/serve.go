package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deskline/deskline/internal/bot"
	"github.com/deskline/deskline/internal/config"
	"github.com/deskline/deskline/internal/db"
	"github.com/deskline/deskline/internal/records"
	"github.com/deskline/deskline/internal/transport"
	discordadapter "github.com/deskline/deskline/internal/transport/discord"
	slackadapter "github.com/deskline/deskline/internal/transport/slack"
	"github.com/deskline/deskline/internal/web"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Deskline bot and API server",
		Long:  "Connects to the configured chat platform, answers record lookups, and serves the admin HTTP API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "deskline.yaml", "path to Deskline config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	store := records.NewStore(records.Schema{
		MobileColumn:    cfg.Records.MobileColumn,
		BirthDateColumn: cfg.Records.BirthDateColumn,
		KeyColumn:       cfg.Records.KeyColumn,
		ExcludedColumns: cfg.Records.ExcludedColumns,
	})
	if err := store.Restore(gormDB); err != nil {
		return fmt.Errorf("restore datasets: %w", err)
	}
	if table, err := store.Info(cfg.Tenant.ID); err == nil {
		fmt.Fprintf(out, "Restored dataset %s (%d rows)\n", table.Filename, len(table.Rows))
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		DB:      gormDB,
		Config:  cfg,
		Adapter: adapter,
		Store:   store,
		Out:     out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// API server runs alongside the bot; either one failing stops both.
	go func() {
		err := web.Start(ctx, web.StartOpts{
			DB:       gormDB,
			Store:    store,
			Engine:   daemon.Engine(),
			TenantID: cfg.Tenant.ID,
			Port:     cfg.Server.Port,
			Out:      out,
		})
		if err != nil {
			log.Printf("deskline: api server: %v", err)
			cancel()
		}
	}()

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (transport.Adapter, error) {
	switch cfg.Transport.Platform {
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken: cfg.Transport.Discord.BotToken,
		})
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken: cfg.Transport.Slack.AppToken,
			BotToken: cfg.Transport.Slack.BotToken,
		})
	case "", "mock":
		// Useful for local API-only runs and tests.
		return transport.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("deskline: unsupported platform %q", cfg.Transport.Platform)
	}
}
