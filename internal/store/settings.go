package store

import (
	"strconv"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// Settings reads runtime tunables from the store's key/value config
// surface. Unset or unparseable values fall back to the documented
// defaults rather than erroring; a replay should never fail because an
// operator fat-fingered a config value.
type Settings struct {
	store Store
}

// NewSettings wraps a store with typed config accessors.
func NewSettings(s Store) *Settings {
	return &Settings{store: s}
}

func (s *Settings) intValue(key string, def int) int {
	raw, err := s.store.GetConfig(key)
	if err != nil || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// MaxConcurrentRequests returns the bounded-replay concurrency limit.
func (s *Settings) MaxConcurrentRequests() int {
	return s.intValue(types.ConfigMaxConcurrentRequests, types.DefaultMaxConcurrentRequests)
}

// RequestDelay returns the delay applied after each request in
// sequential flow replay.
func (s *Settings) RequestDelay() time.Duration {
	ms := s.intValue(types.ConfigRequestDelayMs, int(types.DefaultRequestDelay/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// Timeout returns the per-request replay timeout.
func (s *Settings) Timeout() time.Duration {
	secs := s.intValue(types.ConfigTimeoutSeconds, int(types.DefaultTimeout/time.Second))
	return time.Duration(secs) * time.Second
}

// DetectionThreshold returns the anomaly detection threshold in [0,1].
func (s *Settings) DetectionThreshold() float64 {
	raw, err := s.store.GetConfig(types.ConfigDetectionThreshold)
	if err != nil || raw == "" {
		return types.DefaultDetectionThreshold
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return types.DefaultDetectionThreshold
	}
	return v
}

// CategoryEnabled reports whether payload generation is enabled for a
// mutation category. Categories default to enabled.
func (s *Settings) CategoryEnabled(category string) bool {
	raw, err := s.store.GetConfig(types.ConfigCategoryEnabled(category))
	if err != nil || raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}
