package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	// Storage
	Env         string // "dev" | "prod"
	Store       string // "memory" | "sqlite"
	DBPath      string // e.g. "./data/janus.db"
	RegistryKey string // single KV key holding the whole registry

	// Self-record (the extension that owns this registry)
	SelfID   string
	SelfName string

	// Inventory
	InventoryPath string   // YAML manifest of installed callers
	CallerTypes   []string // inventory entry types that count as callers

	// Sweep
	SweepGraceDays     int // <0 disables, 0 removes immediately
	SweepIntervalHours int // how often the sweeper runs (default 24)
	SweepDelaySeconds  int // deferred sweep after an inventory change
	SweepLocation      *time.Location

	EnforceLock bool
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("JANUS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	st := strings.ToLower(getenvDefault("JANUS_STORE", "sqlite"))
	if st != "memory" && st != "sqlite" {
		st = "sqlite"
	}

	callerTypes := splitCSV(os.Getenv("JANUS_CALLER_TYPES"))
	if len(callerTypes) == 0 {
		callerTypes = []string{"extension"}
	}

	loc, err := time.LoadLocation(getenvDefault("JANUS_SWEEP_TZ", "UTC"))
	if err != nil {
		loc = time.UTC
	}

	return Config{
		HTTPAddr: getenvDefault("JANUS_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvDefault("JANUS_GRPC_ADDR", ":9090"),

		Env:         env,
		Store:       st,
		DBPath:      getenvDefault("JANUS_DB_PATH", "./data/janus.db"),
		RegistryKey: getenvDefault("JANUS_REGISTRY_KEY", "extension_access"),

		SelfID:   strings.TrimSpace(os.Getenv("JANUS_SELF_ID")),
		SelfName: getenvDefault("JANUS_SELF_NAME", "Janus"),

		InventoryPath: strings.TrimSpace(os.Getenv("JANUS_INVENTORY_PATH")),
		CallerTypes:   callerTypes,

		SweepGraceDays:     getenvSignedInt("JANUS_SWEEP_GRACE_DAYS", 7),
		SweepIntervalHours: getenvInt("JANUS_SWEEP_INTERVAL_HOURS", 24),
		SweepDelaySeconds:  getenvInt("JANUS_SWEEP_DELAY_SECONDS", 30),
		SweepLocation:      loc,

		EnforceLock: getenvBool("JANUS_ENFORCE_LOCK", true),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	n := getenvSignedInt(key, def)
	if n < 0 {
		return def
	}
	return n
}

// getenvSignedInt accepts negative values; the sweep grace period uses -1
// to mean "never remove".
func getenvSignedInt(key string, def int) int {
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

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
