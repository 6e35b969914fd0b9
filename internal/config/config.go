// Package config handles toolkit configuration loading and management.
package config

// Config holds all toolkit settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Assets  AssetsConfig  `yaml:"assets"`
	Export  ExportConfig  `yaml:"export"`
}

// AssetsConfig holds mesh and texture lookup settings.
type AssetsConfig struct {
	Dirs      []string          `yaml:"dirs"`       // Directories indexed for asset resolution
	Packages  map[string]string `yaml:"packages"`   // package:// name -> directory
	AutoScale bool              `yaml:"auto_scale"` // Millimeter unit auto-detection
}

// ExportConfig holds generator settings.
type ExportConfig struct {
	Format   string `yaml:"format"`   // Default output dialect
	Extended bool   `yaml:"extended"` // Emit vendor hardware blocks
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Assets: AssetsConfig{
			Packages:  map[string]string{},
			AutoScale: true,
		},
		Export: ExportConfig{
			Format:   "urdf",
			Extended: false,
		},
	}
}
