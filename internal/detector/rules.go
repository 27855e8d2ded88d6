package detector

import (
	"encoding/json"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// KeywordRule is an operator-defined body keyword detector: a
// case-insensitive substring match against the replayed body emits an
// anomaly of the configured type and severity.
type KeywordRule struct {
	Keyword  string         `json:"keyword"`
	Type     string         `json:"type"`
	Severity types.Severity `json:"severity"`
}

// StatusCodeRule is an operator-defined override for an exact
// (original, replayed) status pair. It takes priority over the built-in
// status tie-breaks.
type StatusCodeRule struct {
	Original          int            `json:"original"`
	Replayed          int            `json:"replayed"`
	Severity          types.Severity `json:"severity"`
	IsVulnerability   bool           `json:"is_vulnerability"`
	VulnerabilityType string         `json:"vulnerability_type,omitempty"`
}

// LoadKeywordRules reads the operator keyword rules from the store.
// An unset key yields an empty list.
func LoadKeywordRules(s store.Store) ([]KeywordRule, error) {
	raw, err := s.GetConfig(types.ConfigKeywordRules)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var rules []KeywordRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, &types.ConfigurationError{Key: types.ConfigKeywordRules, Err: err}
	}
	return rules, nil
}

// SaveKeywordRules replaces the operator keyword rule list.
func SaveKeywordRules(s store.Store, rules []KeywordRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return &types.ConfigurationError{Key: types.ConfigKeywordRules, Err: err}
	}
	return s.SetConfig(types.ConfigKeywordRules, string(data))
}

// LoadStatusCodeRules reads the operator status code rules from the
// store. An unset key yields an empty list.
func LoadStatusCodeRules(s store.Store) ([]StatusCodeRule, error) {
	raw, err := s.GetConfig(types.ConfigStatusCodeRules)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var rules []StatusCodeRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, &types.ConfigurationError{Key: types.ConfigStatusCodeRules, Err: err}
	}
	return rules, nil
}

// SaveStatusCodeRules replaces the operator status code rule list.
func SaveStatusCodeRules(s store.Store, rules []StatusCodeRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return &types.ConfigurationError{Key: types.ConfigStatusCodeRules, Err: err}
	}
	return s.SetConfig(types.ConfigStatusCodeRules, string(data))
}
