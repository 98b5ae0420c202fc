package config

import (
	"os"
	"strings"
	"time"
)

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
//
// If both are set, the file takes precedence. This allows local development
// with direct values while production uses Docker secrets.
//
// The file contents are trimmed of leading/trailing whitespace.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
		// If file read fails, fall through to direct value
	}

	return os.Getenv(directKey)
}

// getEnvWithFileFallback retrieves a value supporting the _FILE suffix pattern.
// Given a base key like "PASSWORD", it checks:
//  1. PASSWORD_FILE - reads file contents if set
//  2. PASSWORD - returns direct value if set
func getEnvWithFileFallback(prefix, key string) string {
	return getEnvOrFile(prefix+key, prefix+key+"_FILE")
}

// parseBool parses a boolean string, returning defaultValue on parse failure.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string, defaultValue bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// parseDuration parses a duration string like "45s" or "2m", returning
// defaultValue when unset or unparseable. A bare integer is taken as
// seconds.
func parseDuration(s string, defaultValue time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if secs, err := time.ParseDuration(s + "s"); err == nil && secs > 0 {
		return secs
	}
	return defaultValue
}
