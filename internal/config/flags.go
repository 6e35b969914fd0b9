package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagAssets   = flag.String("assets", "", "Asset directory to index")
	flagFormat   = flag.String("format", "", "Default export format (urdf or mjcf)")
	flagExtended = flag.Bool("extended", false, "Emit extended hardware blocks on export")
	flagNoScale  = flag.Bool("no-auto-scale", false, "Disable millimeter unit auto-detection")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAssets != "" {
		cfg.Assets.Dirs = append(cfg.Assets.Dirs, *flagAssets)
	}
	if *flagFormat != "" {
		cfg.Export.Format = *flagFormat
	}
	if *flagExtended {
		cfg.Export.Extended = true
	}
	if *flagNoScale {
		cfg.Assets.AutoScale = false
	}
}
