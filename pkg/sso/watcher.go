package sso

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/observability"
)

// Watcher watches a SAML provider's certificate and key files and
// swaps a rebuilt provider into the registry when they change, so IdP
// certificate rotation needs no restart.
type Watcher struct {
	registry *Registry
	cfg      *Config
	baseURL  string
	logger   *observability.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for the SAML provider's certificate
// material.
func NewWatcher(registry *Registry, cfg *Config, baseURL string, logger *observability.Logger) (*Watcher, error) {
	if cfg.Type != ProviderTypeSAML || cfg.SAML == nil {
		return nil, fmt.Errorf("certificate watching applies to SAML providers only")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Watcher{
		registry: registry,
		cfg:      cfg,
		baseURL:  baseURL,
		logger:   logger.WithField("component", "cert_watcher"),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Run watches until ctx is cancelled. Editors and secret managers
// replace files with rename/create sequences, so the watch is on the
// parent directories and events are debounced before a rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]bool{
		filepath.Clean(w.cfg.SAML.CertificatePath): true,
	}
	if w.cfg.SAML.KeyPath != "" {
		watched[filepath.Clean(w.cfg.SAML.KeyPath)] = true
	}

	dirs := map[string]bool{}
	for path := range watched {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("certificate watch error")

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	provider, err := NewSAMLProvider(w.cfg, w.baseURL)
	if err != nil {
		// Keep serving with the previous provider.
		w.logger.WithError(err).Error("failed to rebuild SAML provider after certificate change")
		audit.LogFailure(ctx, audit.EventTypeConfigCertReload, "certificate reload failed", err)
		return
	}

	w.registry.Register(provider)
	w.logger.WithField("provider", w.cfg.Name).Info("reloaded SAML provider certificate")
	audit.LogSuccess(ctx, audit.EventTypeConfigCertReload, "certificate reloaded", map[string]interface{}{
		"provider": w.cfg.Name,
	})
}
