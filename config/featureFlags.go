package config

import (
	"os"
	"strconv"
	"strings"
)

const fallbackAllowedEditDays = 7

// UseMemoryStore serves records from in-process fixtures instead of MySQL.
//
// Set via env:
// - STORE_DRIVER=memory
func UseMemoryStore() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	return v == "memory" || v == "fixtures"
}

// DefaultAllowedEditDays is applied to sites created without an explicit edit window.
//
// Set via env:
// - DEFAULT_ALLOWED_EDIT_DAYS=7
func DefaultAllowedEditDays() int {
	n := intFromEnv("DEFAULT_ALLOWED_EDIT_DAYS", fallbackAllowedEditDays)
	if n < 0 {
		return fallbackAllowedEditDays
	}
	return n
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true")
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
