package config

// LoggingConfig controls log output destinations and levels.
type LoggingConfig struct {
	Dir      string         `yaml:"dir"`
	Console  ConsoleConfig  `yaml:"console"`
	File     FileConfig     `yaml:"file"`
	Rotation RotationConfig `yaml:"rotation"`
}

// ConsoleConfig controls the stdout handler.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // "text" or "json"
}

// FileConfig controls the rotating file handlers.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// RotationConfig controls log file rotation.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"` // megabytes
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"` // days
	Compress   bool `yaml:"compress"`
}

// DefaultLoggingConfig returns the logging defaults: text on the console,
// no files.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Dir: "logs",
		Console: ConsoleConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		File: FileConfig{
			Enabled: false,
			Level:   "info",
			Format:  "json",
		},
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}
