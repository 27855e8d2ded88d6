// Package types defines the data model shared by all components of the
// anomaly detector: recorded flows, mutation test cases, replayed
// responses and classified anomalies.
package types

import (
	"time"
)

// Severity ranks the importance of an anomaly, Critical highest.
type Severity string

// Severity levels, ordered Critical > High > Medium > Low > Info.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Rank returns the ordinal position of the severity, higher is more severe.
// Unknown severities rank below Info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Weight returns the numeric weight used by the risk scorer.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 7.5
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2.5
	case SeverityInfo:
		return 1
	}
	return 1
}

// Valid reports whether s is one of the five defined severity levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Mutation rule categories. Category names are open-ended identifiers so
// operators can define their own; these are the seeded defaults.
const (
	CategoryNumeric   = "numeric"
	CategoryString    = "string"
	CategoryAuth      = "auth"
	CategoryParameter = "parameter"
	CategorySequence  = "sequence"
)

// Anomaly types emitted by the classifier.
const (
	AnomalyNoResponse       = "no_response"
	AnomalyStatusCodeDiff   = "status_code_diff"
	AnomalyContentLength    = "content_length_variation"
	AnomalyUnauthorized     = "unauthorized_access"
	AnomalyErrorDisclosure  = "error_disclosure"
)

// Vulnerability types attached to anomalies flagged as potential vulnerabilities.
const (
	VulnUnauthorizedAccess = "unauthorized_access"
	VulnErrorDisclosure    = "error_disclosure"
	VulnDenialOfService    = "denial_of_service"
)

// Flow is an ordered sequence of recorded requests representing one user
// journey against a target.
type Flow struct {
	ID           int64     `json:"flow_id"`
	Name         string    `json:"name"`
	Target       string    `json:"target,omitempty"`
	Description  string    `json:"description,omitempty"`
	RequestCount int       `json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Request is an immutable recorded baseline request with its original
// response. Header keys are stored as given; HTTP header semantics are
// case-insensitive but the recorder does not normalize them.
type Request struct {
	ID                    int64             `json:"request_id"`
	FlowID                int64             `json:"flow_id"`
	SequenceNumber        int               `json:"sequence_number"`
	URL                   string            `json:"url"`
	Method                string            `json:"method"`
	Headers               map[string]string `json:"headers"`
	Body                  []byte            `json:"body,omitempty"`
	ResponseStatus        int               `json:"response_status"`
	ResponseHeaders       map[string]string `json:"response_headers,omitempty"`
	ResponseBody          []byte            `json:"response_body,omitempty"`
	ResponseContentLength int64             `json:"response_content_length"`
	Timestamp             time.Time         `json:"timestamp"`
}

// TestCase is one proposed mutation of a single baseline request, or of a
// flow's request ordering. Exactly one of ModifiedURL, ModifiedHeaders and
// ModifiedBody is set relative to the baseline; sequence test cases set
// none of them and instead encode the proposed ordering as a JSON list of
// request ids in PayloadValue.
type TestCase struct {
	ID              int64             `json:"test_case_id"`
	FlowID          int64             `json:"flow_id"`
	RequestID       int64             `json:"request_id"`
	Type            string            `json:"type"`
	Category        string            `json:"category"`
	Description     string            `json:"description"`
	PayloadValue    string            `json:"payload_value"`
	ModifiedURL     string            `json:"modified_url,omitempty"`
	ModifiedHeaders map[string]string `json:"modified_headers,omitempty"`
	ModifiedBody    []byte            `json:"modified_body,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// HasModifiedHeaders reports whether the test case carries a header override.
// A non-nil empty map is a valid override (all headers removed).
func (tc *TestCase) HasModifiedHeaders() bool {
	return tc.ModifiedHeaders != nil
}

// ReplayedResponse is the recorded result of executing one test case.
// StatusCode 0 signals a transport failure, not a real HTTP status; the
// error text is stored in Body.
type ReplayedResponse struct {
	ID             int64             `json:"response_id"`
	TestCaseID     int64             `json:"test_case_id"`
	StatusCode     int               `json:"status_code"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           []byte            `json:"body,omitempty"`
	ContentLength  int64             `json:"content_length"`
	ResponseTimeMs int64             `json:"response_time_ms"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Failed reports whether the replay failed at the transport level.
func (r *ReplayedResponse) Failed() bool {
	return r.StatusCode == 0
}

// Anomaly is a classified difference between a baseline response and a
// replayed response. Anomalies are append-only and never mutated after
// creation.
type Anomaly struct {
	ID                     int64     `json:"anomaly_id"`
	TestCaseID             int64     `json:"test_case_id"`
	ResponseID             int64     `json:"response_id,omitempty"`
	Type                   string    `json:"type"`
	Severity               Severity  `json:"severity"`
	Description            string    `json:"description"`
	ConfidenceScore        float64   `json:"confidence_score"`
	IsPotentialVulnerability bool    `json:"is_potential_vulnerability"`
	VulnerabilityType      string    `json:"vulnerability_type,omitempty"`
	OriginalStatus         int       `json:"original_status,omitempty"`
	ReplayedStatus         int       `json:"replayed_status,omitempty"`
	OriginalContentLength  int64     `json:"original_content_length,omitempty"`
	ReplayedContentLength  int64     `json:"replayed_content_length,omitempty"`
	DetectedAt             time.Time `json:"detected_at"`
}
