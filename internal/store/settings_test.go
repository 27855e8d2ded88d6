package store

import (
	"testing"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

func TestSettingsDefaults(t *testing.T) {
	settings := NewSettings(NewMemoryStore())

	if got := settings.MaxConcurrentRequests(); got != types.DefaultMaxConcurrentRequests {
		t.Errorf("MaxConcurrentRequests = %d, want %d", got, types.DefaultMaxConcurrentRequests)
	}
	if got := settings.RequestDelay(); got != types.DefaultRequestDelay {
		t.Errorf("RequestDelay = %v, want %v", got, types.DefaultRequestDelay)
	}
	if got := settings.Timeout(); got != types.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", got, types.DefaultTimeout)
	}
	if got := settings.DetectionThreshold(); got != types.DefaultDetectionThreshold {
		t.Errorf("DetectionThreshold = %v, want %v", got, types.DefaultDetectionThreshold)
	}
	if !settings.CategoryEnabled(types.CategoryAuth) {
		t.Error("categories should default to enabled")
	}
}

func TestSettingsReadStoredValues(t *testing.T) {
	s := NewMemoryStore()
	settings := NewSettings(s)

	s.SetConfig(types.ConfigMaxConcurrentRequests, "3")
	s.SetConfig(types.ConfigRequestDelayMs, "250")
	s.SetConfig(types.ConfigTimeoutSeconds, "5")
	s.SetConfig(types.ConfigDetectionThreshold, "0.9")
	s.SetConfig(types.ConfigCategoryEnabled(types.CategorySequence), "false")

	if got := settings.MaxConcurrentRequests(); got != 3 {
		t.Errorf("MaxConcurrentRequests = %d, want 3", got)
	}
	if got := settings.RequestDelay(); got != 250*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 250ms", got)
	}
	if got := settings.Timeout(); got != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", got)
	}
	if got := settings.DetectionThreshold(); got != 0.9 {
		t.Errorf("DetectionThreshold = %v, want 0.9", got)
	}
	if settings.CategoryEnabled(types.CategorySequence) {
		t.Error("sequence category should be disabled")
	}
	if !settings.CategoryEnabled(types.CategoryNumeric) {
		t.Error("numeric category should stay enabled")
	}
}

func TestSettingsFallBackOnGarbage(t *testing.T) {
	s := NewMemoryStore()
	settings := NewSettings(s)

	s.SetConfig(types.ConfigMaxConcurrentRequests, "not a number")
	s.SetConfig(types.ConfigTimeoutSeconds, "-4")
	s.SetConfig(types.ConfigDetectionThreshold, "1.5")
	s.SetConfig(types.ConfigCategoryEnabled(types.CategoryAuth), "maybe")

	if got := settings.MaxConcurrentRequests(); got != types.DefaultMaxConcurrentRequests {
		t.Errorf("unparseable concurrency = %d, want default %d", got, types.DefaultMaxConcurrentRequests)
	}
	if got := settings.Timeout(); got != types.DefaultTimeout {
		t.Errorf("negative timeout = %v, want default %v", got, types.DefaultTimeout)
	}
	if got := settings.DetectionThreshold(); got != types.DefaultDetectionThreshold {
		t.Errorf("out-of-range threshold = %v, want default %v", got, types.DefaultDetectionThreshold)
	}
	if !settings.CategoryEnabled(types.CategoryAuth) {
		t.Error("unparseable category toggle should fall back to enabled")
	}
}
