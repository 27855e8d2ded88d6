package types

import (
	"encoding/json"
	"fmt"
)

// Mutation rule types seeded by default. Rule types are open-ended
// identifiers; operators may add their own as long as a parameter codec
// is registered for them.
const (
	RuleIDIncrement       = "id_increment"
	RuleIDDecrement       = "id_decrement"
	RuleLargeNumber       = "large_number"
	RuleZeroValue         = "zero_value"
	RuleSQLInjection      = "sql_injection_string"
	RuleXSSString         = "xss_string"
	RulePathTraversal     = "path_traversal_string"
	RuleInvalidToken      = "invalid_token"
	RuleNoToken           = "no_token"
	RuleSessionFixation   = "session_fixation_cookie"
	RuleChangeBoolean     = "change_boolean"
	RuleChangeEnum        = "change_enum"
	RuleNullByteInjection = "null_byte_injection"
	RuleReorderRequests   = "reorder_requests"
	RuleSkipRequest       = "skip_request"
	RuleRepeatRequest     = "repeat_request"
)

// String payload positions.
const (
	PositionAppend  = "append"
	PositionPrepend = "prepend"
)

// MutationRule describes one enabled-or-disabled mutation a mutator may
// apply. Params is a variant keyed by Type so each rule shape is handled
// exhaustively at compile time instead of through an untyped bag.
type MutationRule struct {
	ID          int64      `json:"rule_id"`
	Category    string     `json:"category"`
	Type        string     `json:"type"`
	Params      RuleParams `json:"params"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description"`
}

// RuleParams is the tagged union of per-rule-type parameter shapes.
type RuleParams interface {
	ruleParams()
}

// DeltaParams parameterizes id_increment and id_decrement. Delta is
// always positive; the rule type determines the sign.
type DeltaParams struct {
	Delta int64 `json:"delta"`
}

// FixedNumberParams parameterizes large_number and zero_value.
type FixedNumberParams struct {
	Value int64 `json:"value"`
}

// StringPayloadParams parameterizes string-category rules: a list of
// literal payloads concatenated at Position (append or prepend).
type StringPayloadParams struct {
	Position string   `json:"position"`
	Payloads []string `json:"payloads"`
}

// HeaderSetParams parameterizes invalid_token: overwrite HeaderName with Value.
type HeaderSetParams struct {
	HeaderName string `json:"header_name"`
	Value      string `json:"value"`
}

// HeaderRemoveParams parameterizes no_token: remove HeaderName. Removing
// an absent header still produces a test case; probing an auth-required
// endpoint with no credential is meaningful even when the baseline
// carried none.
type HeaderRemoveParams struct {
	HeaderName string `json:"header_name"`
}

// CookieParams parameterizes session_fixation_cookie. The generated test
// case sets the Cookie header to exactly "name=value", replacing any
// existing Cookie header rather than merging with it.
type CookieParams struct {
	CookieName string `json:"cookie_name"`
	Value      string `json:"value"`
}

// CandidateParams parameterizes change_boolean and change_enum: the first
// candidate in declared order that differs from the current value wins.
type CandidateParams struct {
	Values []string `json:"values"`
}

// SuffixParams parameterizes null_byte_injection.
type SuffixParams struct {
	Suffix string `json:"value"`
}

// ReorderParams parameterizes reorder_requests: 1-based position pairs to
// swap. Pairs whose indices exceed the flow length are skipped.
type ReorderParams struct {
	Pairs [][2]int `json:"reorder_pairs"`
}

// SkipParams parameterizes skip_request: 0-based indices to drop.
type SkipParams struct {
	Indices []int `json:"skip_indices"`
}

// RepeatParams parameterizes repeat_request: the request at the 0-based
// Index is issued Times times in total, duplicates inserted immediately
// after the original.
type RepeatParams struct {
	Index int `json:"repeat_index"`
	Times int `json:"times"`
}

func (DeltaParams) ruleParams()         {}
func (FixedNumberParams) ruleParams()   {}
func (StringPayloadParams) ruleParams() {}
func (HeaderSetParams) ruleParams()     {}
func (HeaderRemoveParams) ruleParams()  {}
func (CookieParams) ruleParams()        {}
func (CandidateParams) ruleParams()     {}
func (SuffixParams) ruleParams()        {}
func (ReorderParams) ruleParams()       {}
func (SkipParams) ruleParams()          {}
func (RepeatParams) ruleParams()        {}

// EncodeRuleParams serializes rule parameters for storage.
func EncodeRuleParams(p RuleParams) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// DecodeRuleParams deserializes stored rule parameters into the variant
// matching the rule type.
func DecodeRuleParams(ruleType string, data []byte) (RuleParams, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}

	var (
		p   RuleParams
		err error
	)
	switch ruleType {
	case RuleIDIncrement, RuleIDDecrement:
		var v DeltaParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleLargeNumber, RuleZeroValue:
		var v FixedNumberParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleSQLInjection, RuleXSSString, RulePathTraversal:
		var v StringPayloadParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleInvalidToken:
		var v HeaderSetParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleNoToken:
		var v HeaderRemoveParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleSessionFixation:
		var v CookieParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleChangeBoolean, RuleChangeEnum:
		var v CandidateParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleNullByteInjection:
		var v SuffixParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleReorderRequests:
		var v ReorderParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleSkipRequest:
		var v SkipParams
		err = json.Unmarshal(data, &v)
		p = v
	case RuleRepeatRequest:
		var v RepeatParams
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown rule type %q", ruleType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode params for rule type %q: %w", ruleType, err)
	}
	return p, nil
}
