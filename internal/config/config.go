// Package config provides the typed, dot-notation key/value reader the core
// consumes for all tunables (§6.4). Overrides are evaluated at read time, not
// at process start: env > store-backed override > file > compiled default,
// so an operator can retune a running process without a restart.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// StoreOverrides is the minimal surface the config package needs from the
// shared relational store (§6.4 "store-backed config"). Implemented by
// internal/store against the config_override table.
type StoreOverrides interface {
	GetOverride(ctx context.Context, key string) (string, bool, error)
}

// Reader is the abstract key/value facility every component consumes.
// It never reads raw files or env vars directly; Reader is the only door.
type Reader interface {
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetDuration(key string) time.Duration
	GetBool(key string) bool
	GetStringSlice(key string) []string
}

// Defaults holds the compiled-in fallback values, named exactly as the
// dot-notation keys from spec §6.4.
var Defaults = map[string]any{
	"processing.parallel.max_workers":              10,
	"processing.parallel.batch_size":                50,
	"processing.poll_interval_seconds":              2,
	"deduplication.similarity_threshold":             0.85,
	"deduplication.dup_window_hours":                 24,
	"processing.topic.min_score_threshold":           0.2,
	"processing.topic.confidence_threshold":          0.85,
	"processing.topic.keyword_score_threshold":       0.3,
	"processing.topic.embedding_score_threshold":     0.5,
	"processing.sentiment.positive_threshold":        0.2,
	"processing.sentiment.negative_threshold":        0.2,
	"processing.timeouts.collector_seconds":          120,
	"processing.timeouts.classifier_seconds":         120,
	"processing.timeouts.stale_claim_seconds":        300,
	"processing.timeouts.shutdown_grace_seconds":     30,
	"processing.issues.cluster_similarity":           0.75,
	"processing.issues.min_cluster_size":             3,
	"processing.issues.time_window_hours":            24,
	"processing.issues.match_threshold":              0.75,
	"processing.issues.volume_saturation":            200,
	"processing.issues.resolved_inactivity_hours":    168, // 7 days
	"processing.issues.tick_interval_seconds":        300,
	"processing.issues.priority.sentiment_weight":    0.4,
	"processing.issues.priority.volume_weight":       0.35,
	"processing.issues.priority.time_weight":         0.25,
	"processing.aggregation.windows":                 []string{"15m", "1h", "24h", "7d", "30d"},
	"processing.aggregation.baseline_period_days":     30,
	"processing.max_collector_workers":                8,
	"processing.consecutive_failure_limit":            5,
	"processing.rate_limit.default_tpm":               200000,
}

// FileStore reads the chain env > fsnotify-watched YAML file > compiled
// default, using viper exactly as the teacher's internal/config layers its
// YAML-file settings under env-var overrides.
type FileStore struct {
	v      *viper.Viper
	mu     sync.RWMutex
	store  StoreOverrides // may be nil (no store-backed layer configured)
	envPfx string
}

// NewFileStore builds a Reader backed by configPath (optional, "" to skip
// the file layer) with envPrefix-prefixed environment variable overrides
// (e.g. envPrefix "MEDIAWATCH" turns processing.poll_interval_seconds into
// MEDIAWATCH_PROCESSING_POLL_INTERVAL_SECONDS).
func NewFileStore(configPath, envPrefix string) (*FileStore, error) {
	v := viper.New()
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs := &FileStore{v: v, envPfx: envPrefix}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
		v.WatchConfig()
		v.OnConfigChange(func(_ fsnotify.Event) {
			fs.mu.Lock()
			defer fs.mu.Unlock()
			// viper re-reads in place; nothing else to do, readers take the lock.
		})
	}

	return fs, nil
}

// AttachStore wires a store-backed override layer in above the file layer
// and below env. Safe to call after construction; resolved per-read.
func (f *FileStore) AttachStore(s StoreOverrides) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = s
}

func (f *FileStore) resolve(key string) any {
	f.mu.RLock()
	store := f.store
	f.mu.RUnlock()

	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if f.envPfx != "" {
		envKey = strings.ToUpper(f.envPfx) + "_" + envKey
	}
	if val, ok := os.LookupEnv(envKey); ok {
		return val
	}

	if store != nil {
		if val, ok, err := store.GetOverride(context.Background(), key); err == nil && ok {
			return val
		}
	}
	return f.v.Get(key)
}

func (f *FileStore) GetString(key string) string {
	return cast.ToString(f.resolve(key))
}

func (f *FileStore) GetInt(key string) int {
	return cast.ToInt(f.resolve(key))
}

func (f *FileStore) GetFloat(key string) float64 {
	return cast.ToFloat64(f.resolve(key))
}

func (f *FileStore) GetDuration(key string) time.Duration {
	return cast.ToDuration(f.resolve(key))
}

func (f *FileStore) GetBool(key string) bool {
	return cast.ToBool(f.resolve(key))
}

func (f *FileStore) GetStringSlice(key string) []string {
	return cast.ToStringSlice(f.resolve(key))
}
