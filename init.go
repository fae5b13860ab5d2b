package trailstop

import (
	"os"
	"strconv"

	"github.com/raykavin/trailstop/core"
	logruslog "github.com/raykavin/trailstop/logger/logrus"
	zerologlog "github.com/raykavin/trailstop/logger/zerolog"
)

const (
	// Default configuration values
	defaultLogBackend    = "zerolog"
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

// Environment variable names
const (
	envLogBackend    = "TRAILSTOP_LOG_BACKEND"
	envLogLevel      = "TRAILSTOP_LOG_LEVEL"
	envLogTimeFormat = "TRAILSTOP_LOG_TIME_FORMAT"
	envLogColor      = "TRAILSTOP_LOG_COLOR"
	envLogJSON       = "TRAILSTOP_LOG_JSON"
)

// DefaultLog is the default logger instance
var DefaultLog core.Logger

func init() {
	log, err := initLogger()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// initLogger creates a logger instance configured from environment variables
func initLogger() (core.Logger, error) {
	logLevel := getEnvWithDefault(envLogLevel, defaultLogLevel)
	logTimeFormat := getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat)

	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}

	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	if getEnvWithDefault(envLogBackend, defaultLogBackend) == "logrus" {
		return logruslog.New(logLevel, logTimeFormat, logJSON)
	}

	return zerologlog.New(logLevel, logTimeFormat, logColored, logJSON)
}

// getEnvWithDefault returns the value of the environment variable or the default if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseBoolEnv gets a boolean environment variable with a default value
func parseBoolEnv(key, defaultValue string) (bool, error) {
	value := getEnvWithDefault(key, defaultValue)
	return strconv.ParseBool(value)
}
