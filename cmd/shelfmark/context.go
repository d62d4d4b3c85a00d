package main

import (
	"log/slog"
	"strings"
	"sync"

	"shelfmark/internal/bitstore"
	"shelfmark/internal/config"
	"shelfmark/internal/filter"
	"shelfmark/internal/filter/pdftext"
	"shelfmark/internal/filter/pdfthumb"
	"shelfmark/internal/ledger"
	"shelfmark/internal/logging"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// buildRegistry wires the closed set of filter variants.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*filter.Registry, error) {
	registry := filter.NewRegistry()
	if err := registry.Register(pdftext.New(cfg, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(pdfthumb.New(cfg, logger)); err != nil {
		return nil, err
	}
	return registry, nil
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg)
}

func (c *commandContext) openStore() (*bitstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return bitstore.New(cfg.Paths.StoreDir)
}
