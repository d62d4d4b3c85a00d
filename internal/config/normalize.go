package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StoreDir) == "" {
		c.Paths.StoreDir = defaultStoreDir
	}
	if c.Paths.StoreDir, err = expandPath(c.Paths.StoreDir); err != nil {
		return fmt.Errorf("paths.store_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// normalizeTools expands tool paths but leaves empty values empty; an unset
// tool is a first-use error for its filter, not a load error.
func (c *Config) normalizeTools() error {
	var err error
	c.Tools.Pdftotext = strings.TrimSpace(c.Tools.Pdftotext)
	if c.Tools.Pdftotext != "" && strings.HasPrefix(c.Tools.Pdftotext, "~") {
		if c.Tools.Pdftotext, err = expandPath(c.Tools.Pdftotext); err != nil {
			return fmt.Errorf("tools.pdftotext: %w", err)
		}
	}
	c.Tools.Pdftoppm = strings.TrimSpace(c.Tools.Pdftoppm)
	if c.Tools.Pdftoppm != "" && strings.HasPrefix(c.Tools.Pdftoppm, "~") {
		if c.Tools.Pdftoppm, err = expandPath(c.Tools.Pdftoppm); err != nil {
			return fmt.Errorf("tools.pdftoppm: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
