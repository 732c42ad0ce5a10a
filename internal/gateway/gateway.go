package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/kindred/internal/agent"
	"github.com/stellarlinkco/kindred/internal/blob"
	"github.com/stellarlinkco/kindred/internal/bus"
	"github.com/stellarlinkco/kindred/internal/channel"
	"github.com/stellarlinkco/kindred/internal/config"
	"github.com/stellarlinkco/kindred/internal/llm"
	"github.com/stellarlinkco/kindred/internal/memory"
	"github.com/stellarlinkco/kindred/internal/platform/logger"
	"github.com/stellarlinkco/kindred/internal/rhythm"
	"github.com/stellarlinkco/kindred/internal/session"
	"github.com/stellarlinkco/kindred/internal/store"
)

// Options allows tests to swap the real dependencies for fakes.
type Options struct {
	Completer  llm.Completer
	BotFactory channel.BotFactory
	Linker     agent.AccountLinker
	Logger     *zap.SugaredLogger
	SignalChan chan os.Signal
}

// Gateway owns every long-lived component and the process loop that
// feeds inbound traffic to the orchestrator.
type Gateway struct {
	cfg *config.Config
	log *zap.SugaredLogger

	store    *store.Store
	blobs    blob.Store
	bus      *bus.MessageBus
	agent    *agent.Agent
	telegram *channel.TelegramChannel
	rhythm   *rhythm.Service

	signalChan chan os.Signal
}

// New builds a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions builds a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	log := opts.Logger
	if log == nil {
		var err error
		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	st, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	blobs, err := blob.NewFSStore(cfg.Data.BlobDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	completer := opts.Completer
	if completer == nil {
		client, err := llm.NewClient(cfg.Provider)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		completer = client
	}

	codec := memory.NewCodec(blobs, log)
	engine := memory.NewEngine(codec, completer, log, cfg.Character.Name, cfg.Session.ExtractionMinimum)
	extractor := session.NewExtractor(st, engine, log)

	timeout, err := time.ParseDuration(cfg.Session.Timeout)
	if err != nil {
		timeout = 45 * time.Minute
	}
	sessions := session.NewManager(st, log, timeout, cfg.Session.ExtractionMinimum)
	sessions.OnClose(extractor.Enqueue)

	mbus := bus.NewMessageBus(64)
	ag := agent.New(st, codec, sessions, completer, mbus, opts.Linker, cfg, log)

	var tg *channel.TelegramChannel
	if cfg.Telegram.Token != "" {
		if opts.BotFactory != nil {
			tg, err = channel.NewTelegramChannelWithFactory(cfg.Telegram, mbus, log, opts.BotFactory)
		} else {
			tg, err = channel.NewTelegramChannel(cfg.Telegram, mbus, log)
		}
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("create telegram channel: %w", err)
		}
	}

	sweeps := rhythm.NewSweeps(st, codec, blobs, extractor, completer, mbus, cfg, log)
	rh := rhythm.NewService(sweeps, cfg.Rhythm, log)

	return &Gateway{
		cfg:        cfg,
		log:        log,
		store:      st,
		blobs:      blobs,
		bus:        mbus,
		agent:      ag,
		telegram:   tg,
		rhythm:     rh,
		signalChan: opts.SignalChan,
	}, nil
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if g.telegram != nil {
		g.bus.SubscribeOutbound(func(msg bus.OutboundMessage) {
			if err := g.telegram.Send(msg); err != nil {
				g.log.Warnw("outbound delivery failed", "chat_id", msg.ChatID, "error", err)
			}
		})
	}
	go g.bus.DispatchOutbound(ctx)

	if g.telegram != nil {
		if err := g.telegram.Start(ctx); err != nil {
			return fmt.Errorf("start telegram: %w", err)
		}
		g.log.Infow("telegram channel started")
	} else {
		g.log.Warnw("telegram token not set, running without a channel")
	}

	if err := g.rhythm.Start(ctx); err != nil {
		g.log.Warnw("rhythm start failed", "error", err)
	}

	go g.processLoop(ctx)

	g.log.Infow("gateway running", "character", g.cfg.Character.Name)

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	g.log.Infow("shutting down")
	cancel()
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			go g.agent.HandleMessage(ctx, msg)
		case ev := <-g.bus.Account:
			go g.agent.HandleAccountEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops the components in reverse start order.
func (g *Gateway) Shutdown() error {
	g.rhythm.Stop()
	if g.telegram != nil {
		if err := g.telegram.Stop(); err != nil {
			g.log.Warnw("telegram stop failed", "error", err)
		}
	}
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Bus exposes the message bus so external integrations (payment
// webhooks) can inject account events.
func (g *Gateway) Bus() *bus.MessageBus {
	return g.bus
}
