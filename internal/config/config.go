package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all service configuration.
type Config struct {
	Server ServerConfig
	Collab CollabConfig
	Redis  RedisConfig
	Invite InviteConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	collab, err := loadCollabConfig()
	if err != nil {
		return nil, err
	}

	invite, err := loadInviteConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Collab: collab,
		Redis:  RedisConfig{URL: strings.TrimSpace(os.Getenv("REDIS_URL"))},
		Invite: invite,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// CollabConfig holds the collaboration tunables. All timers fail safe in
// the direction of releasing resources: locks unlock and presence goes
// offline rather than lingering.
type CollabConfig struct {
	LockTTL          time.Duration
	HeartbeatStale   time.Duration
	CoalesceWindow   time.Duration
	SnapshotInterval time.Duration
	FeedCap          int
	SnapshotCap      int
}

func loadCollabConfig() (CollabConfig, error) {
	lockTTL, err := parseDurationEnv("LOCK_TTL", 60*time.Second)
	if err != nil {
		return CollabConfig{}, err
	}

	stale, err := parseDurationEnv("HEARTBEAT_STALENESS", 30*time.Second)
	if err != nil {
		return CollabConfig{}, err
	}

	coalesce, err := parseDurationEnv("CURSOR_COALESCE_WINDOW", 33*time.Millisecond)
	if err != nil {
		return CollabConfig{}, err
	}

	interval, err := parseDurationEnv("SNAPSHOT_INTERVAL", 5*time.Minute)
	if err != nil {
		return CollabConfig{}, err
	}

	feedCap, err := parseIntEnv("FEED_CAP", 20)
	if err != nil {
		return CollabConfig{}, err
	}

	snapshotCap, err := parseIntEnv("SNAPSHOT_CAP", 50)
	if err != nil {
		return CollabConfig{}, err
	}

	return CollabConfig{
		LockTTL:          lockTTL,
		HeartbeatStale:   stale,
		CoalesceWindow:   coalesce,
		SnapshotInterval: interval,
		FeedCap:          feedCap,
		SnapshotCap:      snapshotCap,
	}, nil
}

// RedisConfig describes the optional durable snapshot backend.
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL was provided.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// InviteConfig describes invite-link signing.
type InviteConfig struct {
	Secret  []byte
	BaseURL string
	TTL     time.Duration
}

func loadInviteConfig() (InviteConfig, error) {
	ttl, err := parseDurationEnv("INVITE_TTL", 7*24*time.Hour)
	if err != nil {
		return InviteConfig{}, err
	}

	secret := strings.TrimSpace(os.Getenv("INVITE_SECRET"))
	if secret == "" {
		// Ephemeral secret: existing invite links stop working on restart.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return InviteConfig{}, fmt.Errorf("generate invite secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		log.Println("warning: INVITE_SECRET not set, using an ephemeral secret")
	}

	return InviteConfig{
		Secret:  []byte(secret),
		BaseURL: getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		TTL:     ttl,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
