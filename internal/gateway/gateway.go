// Package gateway wires the whole assistant together: channels feed the
// message bus, the engine answers each turn, and the scheduler runs the
// reminder, follow-up, decay and check-in sweeps.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sagrawal11/alfred-sub000/internal/bus"
	"github.com/sagrawal11/alfred-sub000/internal/channel"
	"github.com/sagrawal11/alfred-sub000/internal/classifier"
	"github.com/sagrawal11/alfred-sub000/internal/config"
	"github.com/sagrawal11/alfred-sub000/internal/engine"
	"github.com/sagrawal11/alfred-sub000/internal/followup"
	"github.com/sagrawal11/alfred-sub000/internal/learning"
	"github.com/sagrawal11/alfred-sub000/internal/onboarding"
	"github.com/sagrawal11/alfred-sub000/internal/sched"
	"github.com/sagrawal11/alfred-sub000/internal/session"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// ClassifierFactory creates the external classifier (allows mocking in tests).
type ClassifierFactory func(cfg *config.Config) (classifier.Classifier, error)

// DefaultClassifierFactory builds the real model-backed classifier.
func DefaultClassifierFactory(cfg *config.Config) (classifier.Classifier, error) {
	rt, err := classifier.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return classifier.New(rt), nil
}

// Options for creating a Gateway.
type Options struct {
	ClassifierFactory ClassifierFactory
	SignalChan        chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      *store.Store
	sessions   *session.Manager
	classifier classifier.Classifier
	learning   *learning.Orchestrator
	followups  *followup.Service
	engine     *engine.Engine
	channels   *channel.Manager
	sched      *sched.Scheduler
	signalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, signalChan: opts.SignalChan}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	dbPath := strings.TrimSpace(cfg.Store.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "data", "alfred.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	factory := opts.ClassifierFactory
	if factory == nil {
		factory = DefaultClassifierFactory
	}
	cls, err := factory(cfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	g.classifier = cls

	g.sessions = session.NewManager(
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		cfg.Session.HistoryLimit,
	)

	learner := learning.NewLearner(st, cfg.Learning.ApplyThreshold, cfg.Learning.OverrideThreshold, cfg.Learning.PruneThreshold)
	g.learning = learning.NewOrchestrator(learner)

	g.followups = followup.NewService(
		st, g, g.sessions,
		time.Duration(cfg.FollowUp.DelayMinutes)*time.Minute,
		time.Duration(cfg.Decay.ThresholdDays)*24*time.Hour,
		cfg.FollowUp.EveningCutoffHour,
		cfg.FollowUp.AutoReschedule,
	)

	flow := onboarding.NewFlow(st, cfg.Onboarding.DefaultBottleML)
	g.engine = engine.New(st, g.sessions, cls, g.learning, flow, g.followups,
		cfg.Learning.GuessThreshold, cfg.Onboarding.DefaultBottleML)

	g.channels, err = channel.NewManager(cfg.Channels, g.bus)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init channels: %w", err)
	}

	g.sched = sched.New()
	g.registerJobs()

	return g, nil
}

func (g *Gateway) registerJobs() {
	g.sched.Add("reminders", "0 * * * * *", g.followups.RunReminderSweep)
	g.sched.Add("follow-ups", "30 * * * * *", g.followups.RunFollowUpSweep)
	g.sched.Add("decay", "0 15 * * * *", g.followups.RunDecaySweep)
	g.sched.Add("checkins", "0 0 * * * *", g.runCheckins)
	g.sched.Add("session-eviction", "0 */5 * * * *", func(context.Context) {
		g.sessions.EvictExpired()
	})
	g.sched.Add("pattern-pruning", "0 30 3 * * *", g.runPruning)
}

// Notify delivers an out-of-band message to a user over the channel they
// last talked on.
func (g *Gateway) Notify(userID, text string) error {
	user, err := g.store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("notify %s: %w", userID, err)
	}
	if user == nil || user.Channel == "" || user.ChatID == "" {
		return fmt.Errorf("notify %s: no reachable channel", userID)
	}
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: user.Channel,
		ChatID:  user.ChatID,
		Content: text,
	}
	return nil
}

// runCheckins sends the morning message to every set-up user whose check-in
// hour matches the current hour.
func (g *Gateway) runCheckins(ctx context.Context) {
	users, err := g.store.ListUsers()
	if err != nil {
		log.Printf("[gateway] checkin sweep: %v", err)
		return
	}
	hour := time.Now().Hour()
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		if !u.OnboardingComplete || u.CheckinHour != hour {
			continue
		}
		if err := g.Notify(u.ID, "Morning! Anything you want on today's list?"); err != nil {
			log.Printf("[gateway] checkin for %s: %v", u.ID, err)
		}
	}
}

func (g *Gateway) runPruning(ctx context.Context) {
	users, err := g.store.ListUsers()
	if err != nil {
		log.Printf("[gateway] prune sweep: %v", err)
		return
	}
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		g.learning.Prune(u.ID)
	}
}

// Run starts everything and blocks until SIGINT/SIGTERM.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.sched.Start(ctx); err != nil {
		log.Printf("[gateway] scheduler start warning: %v", err)
	}

	go g.processLoop(ctx)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			g.recordContact(msg)

			for _, reply := range g.engine.ProcessTurn(ctx, msg.SenderID, msg.Content) {
				if reply == "" {
					continue
				}
				g.bus.Outbound <- bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: reply,
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// recordContact keeps the user's reachable channel current so sweeps can
// find them later.
func (g *Gateway) recordContact(msg bus.InboundMessage) {
	user, err := g.store.GetUser(msg.SenderID)
	if err != nil {
		log.Printf("[gateway] load user %s: %v", msg.SenderID, err)
		return
	}
	if user == nil {
		user = &store.User{ID: msg.SenderID}
	}
	if user.Channel == msg.Channel && user.ChatID == msg.ChatID {
		return
	}
	user.Channel = msg.Channel
	user.ChatID = msg.ChatID
	if err := g.store.SaveUser(user); err != nil {
		log.Printf("[gateway] save user %s: %v", msg.SenderID, err)
	}
}

// ProcessDirect runs one turn outside any channel, for the CLI.
func (g *Gateway) ProcessDirect(ctx context.Context, userID, message string) []string {
	return g.engine.ProcessTurn(ctx, userID, message)
}

// Store exposes the persistence layer for the CLI status command.
func (g *Gateway) Store() *store.Store { return g.store }

func (g *Gateway) Shutdown() error {
	g.sched.Stop()
	_ = g.channels.StopAll()
	if g.classifier != nil {
		if c, ok := g.classifier.(*classifier.Client); ok {
			c.Close()
		}
	}
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close store warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
