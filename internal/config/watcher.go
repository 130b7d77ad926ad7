package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mattjoyce/putput/internal/log"
)

const defaultWatchSettle = 250 * time.Millisecond

// Watcher reloads the config file when its content changes on disk.
// The parent directory is watched because editors often replace files by
// rename instead of writing in place.
type Watcher struct {
	path   string
	settle time.Duration
	fsw    *fsnotify.Watcher
	last   string
	logger *slog.Logger
}

// NewWatcher starts watching the directory that holds path.
func NewWatcher(path string) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{
		path:   absPath,
		settle: defaultWatchSettle,
		fsw:    fsw,
		logger: log.WithComponent("config"),
	}
	// A missing file simply has no fingerprint yet.
	w.last, _ = Fingerprint(absPath)
	return w, nil
}

// Run blocks until ctx is cancelled, calling onChange with every config that
// parses after a content change. Parse failures are logged and the previous
// config stays in effect.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	defer w.fsw.Close()

	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(w.settle)
			} else {
				if !settle.Stop() {
					select {
					case <-settle.C:
					default:
					}
				}
				settle.Reset(w.settle)
			}
			settleC = settle.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-settleC:
			settleC = nil
			w.check(onChange)
		}
	}
}

func (w *Watcher) check(onChange func(*Config)) {
	fp, err := Fingerprint(w.path)
	if err != nil {
		w.logger.Debug("config not readable, skipping reload", "path", w.path, "error", err)
		return
	}
	if fp == w.last {
		return
	}
	w.last = fp

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config changed but failed to load, keeping previous", "error", err)
		return
	}
	for _, warning := range cfg.Warnings {
		w.logger.Warn("config warning", "path", w.path, "warning", warning)
	}
	w.logger.Info("config changed, reloading", "path", w.path, "fingerprint", fp[:12])
	onChange(cfg)
}
