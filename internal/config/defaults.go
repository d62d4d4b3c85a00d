package config

const (
	defaultStagingDir            = "~/.local/share/shelfmark/staging"
	defaultStoreDir              = "~/.local/share/shelfmark/store"
	defaultLogDir                = "~/.local/share/shelfmark/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultToolTimeoutSeconds    = 600
	defaultThumbnailMaxDimension = 160
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StoreDir:   defaultStoreDir,
			LogDir:     defaultLogDir,
		},
		Tools: Tools{
			TimeoutSeconds: defaultToolTimeoutSeconds,
		},
		Thumbnail: Thumbnail{
			MaxDimension: defaultThumbnailMaxDimension,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
