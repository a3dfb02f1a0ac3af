// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Triage defaults
const (
	DefaultTriageWorkersValue = 100
	DefaultTriagePortValue    = 4000
	DefaultFaultMarker        = "FARKFARKFARK"
)

// Config holds all configuration for the aptrace tools.
type Config struct {
	LogPath             string // APLOG_PATH, capture log served by the MCP server
	CapturePath         string // APLOG_CAPTURE_PATH, original full capture for pcap renders
	HeaderCacheMaxItems int    // HEADER_CACHE_MAX_ITEMS, default 4096

	// Triage driver
	TriageWorkers     int           // TRIAGE_WORKERS, default 100
	TriageHost        string        // TRIAGE_HOST, default "127.0.0.1"
	TriagePort        int           // TRIAGE_PORT, default 4000
	TriageTestTimeout time.Duration // TRIAGE_TEST_TIMEOUT_MS, default 60000ms
	TriageReadTimeout time.Duration // TRIAGE_READ_TIMEOUT_MS, default 2000ms
	TriageMarker      string        // TRIAGE_MARKER, default "FARKFARKFARK"
	TriageInterpreter string        // TRIAGE_INTERPRETER, default "python3"

	// Target emulation
	TriageArch     string // TRIAGE_ARCH (falls back to ARCH), "x86_64" or "mips"
	TriageEmulator string // TRIAGE_EMULATOR, overrides the qemu binary picked from the arch
	TriagePreload  string // TRIAGE_PRELOAD, default "/tmp/qemu.so"
	TriageMipsRoot string // TRIAGE_MIPS_ROOT, default "/mnt/rootfs-mips"

	// MCP output limits
	DefaultListLimit int // DEFAULT_LIST_LIMIT, default 50
	MaxRenderBytes   int // MAX_RENDER_BYTES, default 1_000_000

	// Logging configuration
	LogLevel      string // LOG_LEVEL, default "info"
	LogFormat     string // LOG_FORMAT, "text" or "json", default "text"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    // LOG_MAX_SIZE_MB, default 10
	LogMaxBackups int    // LOG_MAX_BACKUPS, default 5
	LogMaxAgeDays int    // LOG_MAX_AGE_DAYS, default 28
	LogCompress   bool   // LOG_COMPRESS, default true
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		LogPath:             getEnvString("APLOG_PATH", ""),
		CapturePath:         getEnvString("APLOG_CAPTURE_PATH", ""),
		HeaderCacheMaxItems: getEnvInt("HEADER_CACHE_MAX_ITEMS", 4096),

		TriageWorkers:     getEnvInt("TRIAGE_WORKERS", DefaultTriageWorkersValue),
		TriageHost:        getEnvString("TRIAGE_HOST", "127.0.0.1"),
		TriagePort:        getEnvInt("TRIAGE_PORT", DefaultTriagePortValue),
		TriageTestTimeout: getEnvDurationMs("TRIAGE_TEST_TIMEOUT_MS", 60000),
		TriageReadTimeout: getEnvDurationMs("TRIAGE_READ_TIMEOUT_MS", 2000),
		TriageMarker:      getEnvString("TRIAGE_MARKER", DefaultFaultMarker),
		TriageInterpreter: getEnvString("TRIAGE_INTERPRETER", "python3"),

		TriageArch:     getEnvString("TRIAGE_ARCH", getEnvString("ARCH", "x86_64")),
		TriageEmulator: getEnvString("TRIAGE_EMULATOR", ""),
		TriagePreload:  getEnvString("TRIAGE_PRELOAD", "/tmp/qemu.so"),
		TriageMipsRoot: getEnvString("TRIAGE_MIPS_ROOT", "/mnt/rootfs-mips"),

		DefaultListLimit: getEnvInt("DEFAULT_LIST_LIMIT", 50),
		MaxRenderBytes:   getEnvInt("MAX_RENDER_BYTES", 1_000_000),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFormat:     getEnvString("LOG_FORMAT", "text"),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
