// Package bot runs the Deskline daemon: it connects a chat transport, pumps
// inbound messages into the dialogue engine, and maintains the chat log.
package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/deskline/deskline/internal/config"
	"github.com/deskline/deskline/internal/dialogue"
	"github.com/deskline/deskline/internal/models"
	"github.com/deskline/deskline/internal/records"
	"github.com/deskline/deskline/internal/transport"
)

// sweepInterval is how often idle sessions are swept as a backstop behind
// the per-session inactivity timers.
const sweepInterval = time.Minute

// Daemon is the main Deskline process. It connects to a chat platform via a
// transport.Adapter and routes every inbound message through the dialogue
// engine for its conversation.
type Daemon struct {
	db      *gorm.DB
	cfg     *config.Config
	adapter transport.Adapter
	store   *records.Store
	engine  *dialogue.Engine
	out     io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Adapter transport.Adapter
	Store   *records.Store
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options. The dialogue engine is
// built here so callers (HTTP API) can reach it before Run starts.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: adapter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: record store is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	d := &Daemon{
		db:      opts.DB,
		cfg:     opts.Config,
		adapter: opts.Adapter,
		store:   opts.Store,
		out:     out,
	}

	engine, err := dialogue.NewEngine(dialogue.EngineOpts{
		Policy: dialogue.PolicyFromConfig(opts.Config),
		Source: opts.Store,
		Sink:   &loggedSink{adapter: opts.Adapter, db: opts.DB, tenantID: opts.Config.Tenant.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("bot: build engine: %w", err)
	}
	d.engine = engine
	return d, nil
}

// Engine exposes the dialogue engine (HTTP API).
func (d *Daemon) Engine() *dialogue.Engine {
	return d.engine
}

// Run starts the daemon. It connects the adapter, starts the purge scheduler
// and session sweep, and blocks pumping inbound messages until the context
// is cancelled. On shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Deskline connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(transport.BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: listen: %w", err)
	}

	go d.runPurgeScheduler(ctx)
	go d.runSessionSweep(ctx)

	fmt.Fprintf(d.out, "Deskline online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Deskline shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				log.Printf("bot: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Deskline stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Deskline inbound channel closed\n")
				return nil
			}
			d.handleInbound(ctx, msg, botUserID)
		}
	}
}

// handleInbound records one inbound message and hands it to the engine.
// Enqueueing is fast, so the pump is never stalled by a slow conversation.
func (d *Daemon) handleInbound(ctx context.Context, msg transport.InboundMessage, botUserID string) {
	if msg.ConversationID == "" {
		return
	}
	// Self-message filtering backstop; adapters filter these already.
	if botUserID != "" && msg.UserID == botUserID {
		return
	}

	d.logMessage(msg.ConversationID, models.DirectionIn, msg.Text)
	d.engine.HandleMessage(ctx, msg.ConversationID, msg.Text)
}

// logMessage appends one chat log row. Log failures never block the dialogue.
func (d *Daemon) logMessage(conversationID, direction, text string) {
	row := models.ChatLog{
		TenantID:       d.cfg.Tenant.ID,
		ConversationID: conversationID,
		Direction:      direction,
		Text:           text,
	}
	if err := d.db.Create(&row).Error; err != nil {
		log.Printf("bot: chat log %s: %v", direction, err)
	}
}

// runPurgeScheduler deletes chat log rows older than the configured
// retention, on the configured cron schedule.
func (d *Daemon) runPurgeScheduler(ctx context.Context) {
	expr := d.cfg.Dialogue.PurgeCron
	if expr == "" || d.cfg.Dialogue.LogRetentionDays <= 0 {
		return
	}

	wait := nextCronDuration(expr)
	if wait <= 0 {
		log.Printf("bot: purge cron %q did not parse, purge disabled", expr)
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.purgeChatLogs()
			if wait := nextCronDuration(expr); wait > 0 {
				timer.Reset(wait)
			} else {
				return
			}
		}
	}
}

// purgeChatLogs removes chat log rows past the retention window.
func (d *Daemon) purgeChatLogs() {
	cutoff := time.Now().AddDate(0, 0, -d.cfg.Dialogue.LogRetentionDays)
	res := d.db.Where("tenant_id = ? AND created_at < ?", d.cfg.Tenant.ID, cutoff).
		Delete(&models.ChatLog{})
	if res.Error != nil {
		log.Printf("bot: purge chat logs: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("bot: purged %d chat log rows older than %s", res.RowsAffected, cutoff.Format("2006-01-02"))
	}
}

// runSessionSweep periodically evicts sessions the inactivity timers missed.
func (d *Daemon) runSessionSweep(ctx context.Context) {
	maxIdle := 2 * time.Duration(d.cfg.Dialogue.InactivityTimeoutSec) * time.Second
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.engine.Sessions().Sweep(time.Now(), maxIdle); n > 0 {
				log.Printf("bot: swept %d stale sessions", n)
			}
		}
	}
}

// loggedSink adapts a transport.Adapter to dialogue.ReplySink, recording
// every outbound reply in the chat log.
type loggedSink struct {
	adapter  transport.Adapter
	db       *gorm.DB
	tenantID string
}

func (s *loggedSink) Reply(ctx context.Context, conversationID, text string) error {
	row := models.ChatLog{
		TenantID:       s.tenantID,
		ConversationID: conversationID,
		Direction:      models.DirectionOut,
		Text:           text,
	}
	if err := s.db.Create(&row).Error; err != nil {
		log.Printf("bot: chat log out: %v", err)
	}
	return s.adapter.Send(ctx, transport.OutboundMessage{
		ConversationID: conversationID,
		Text:           text,
	})
}
