package serverrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/m2mobi/apnsd/internal/config"
	"github.com/m2mobi/apnsd/internal/dispatch"
	"github.com/m2mobi/apnsd/internal/journal"
	"github.com/m2mobi/apnsd/internal/push"
	logpkg "github.com/m2mobi/apnsd/pkg/log"
)

// Options configures a dispatch run.
type Options struct {
	Config cfgpkg.Config
	// InputPath is a JSON file holding an array of messages; "-" reads
	// from stdin.
	InputPath string
	Logger    logpkg.Logger
}

// errDrained signals the watcher observed an empty queue with all errors
// merged; it cancels the group without being reported to the caller.
var errDrained = fmt.Errorf("drained")

// Run dispatches the input batch across the worker pool and blocks until
// the queue drains or ctx is cancelled. On return all shared resources
// are released.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so a caller
	// without signal wiring still shuts down cleanly.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	msgs, err := LoadMessages(opts.InputPath)
	if err != nil {
		return err
	}

	cfg := opts.Config
	var jrnl *journal.Journal
	if cfg.JournalDir != "" {
		jrnl, err = journal.Open(cfg.JournalDir)
		if err != nil {
			return err
		}
		defer jrnl.Close()
	}

	engines := func(i int) (dispatch.Engine, error) {
		return push.NewClient(push.ClientOptions{
			Environment:  push.Environment(cfg.Environment),
			KeyFile:      cfg.Credentials.KeyFile,
			KeyID:        cfg.Credentials.KeyID,
			TeamID:       cfg.Credentials.TeamID,
			DefaultTopic: cfg.DefaultTopic,
			Retries:      cfg.SendRetries,
			Logger:       logger,
		}), nil
	}

	d, err := dispatch.New(dispatch.Options{
		WorkerCount:   cfg.WorkerCount,
		QueueCapacity: cfg.QueueCapacityBytes,
		IdleInterval:  time.Duration(cfg.IdleIntervalMs) * time.Millisecond,
		Engines:       engines,
		Journal:       jrnl,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	logger.Info("starting dispatch",
		logpkg.Int("workers", cfg.WorkerCount),
		logpkg.Str("environment", cfg.Environment),
		logpkg.Int("messages", len(msgs)),
	)
	if err := d.Start(sctx); err != nil {
		return err
	}

	for _, m := range msgs {
		if err := d.Submit(m); err != nil {
			logger.Error("submit failed", logpkg.Err(err))
		}
	}

	idle := time.Duration(cfg.IdleIntervalMs) * time.Millisecond
	g, gctx := errgroup.WithContext(sctx)

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				queued, _ := d.MessageQueue(false)
				failed, _ := d.Errors(false)
				logger.Info("dispatch progress",
					logpkg.Int("queued", len(queued)),
					logpkg.Int("failed", len(failed)),
				)
			}
		}
	})

	g.Go(func() error {
		// the queue must stay empty for two settle windows: one for the
		// workers to drain, one for in-flight sends to merge errors
		settled := 0
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(2 * idle):
			}
			if !d.IsRunning() {
				return errDrained
			}
			queued, err := d.MessageQueue(false)
			if err != nil {
				return err
			}
			if len(queued) == 0 {
				settled++
				if settled >= 2 {
					return errDrained
				}
			} else {
				settled = 0
			}
		}
	})

	if err := g.Wait(); err != nil && err != errDrained {
		return err
	}

	failures, err := d.Errors(true)
	if err != nil {
		return err
	}
	for _, f := range failures {
		logger.Warn("undelivered notification",
			logpkg.Str("message", f.MessageID),
			logpkg.Str("token", f.Token),
			logpkg.Str("reason", f.Reason),
			logpkg.Int("attempts", f.Attempts),
		)
	}
	logger.Info("dispatch finished",
		logpkg.Int("submitted", len(msgs)),
		logpkg.Int("failed", len(failures)),
	)
	return nil
}

// LoadMessages reads a JSON array of messages from path ("-" for stdin).
func LoadMessages(path string) ([]*push.Message, error) {
	var r io.Reader
	switch path {
	case "":
		return nil, fmt.Errorf("input path is required")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var msgs []*push.Message
	dec := json.NewDecoder(r)
	if err := dec.Decode(&msgs); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return msgs, nil
}
