package config

import "go.uber.org/zap/zapcore"

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = "console"
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = "json"
)

// Logger names used by the commands.
const (
	RepoLogger = "repo"
	SimLogger  = "sim"
	SQLLogger  = "sql"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder         LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel  string     `mapstructure:"app"`
	RepoLoggerLevel string     `mapstructure:"repo"`
	SimLoggerLevel  string     `mapstructure:"sim"`
	SQLLoggerLevel  string     `mapstructure:"sql"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:         ConsoleLogEncoder,
		AppLoggerLevel:  defaultLoggingLevel.String(),
		RepoLoggerLevel: zapcore.WarnLevel.String(),
		SimLoggerLevel:  defaultLoggingLevel.String(),
		SQLLoggerLevel:  zapcore.WarnLevel.String(),
	}
}

// Levels maps logger names to configured levels.
func (c LoggerConfig) Levels() map[string]string {
	return map[string]string{
		RepoLogger: c.RepoLoggerLevel,
		SimLogger:  c.SimLoggerLevel,
		SQLLogger:  c.SQLLoggerLevel,
	}
}
