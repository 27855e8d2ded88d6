// Package store persists flows, requests, test cases, replayed responses,
// anomalies, mutation rules and runtime configuration.
package store

import (
	"errors"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// TestCaseFilter narrows GetTestCases. Zero-valued fields are ignored.
type TestCaseFilter struct {
	FlowID    int64
	RequestID int64
}

// AnomalyFilter narrows GetAnomalies. Zero-valued fields are ignored.
type AnomalyFilter struct {
	FlowID     int64
	TestCaseID int64
}

// Store is the persistence interface consumed by the core. Every write is
// atomic per call; no cross-call transactions are required. Implementations
// wrap failures in *types.DatabaseError.
type Store interface {
	CreateFlow(name, target, description string) (int64, error)
	GetFlow(id int64) (*types.Flow, error)
	ListFlows() ([]types.Flow, error)

	// AddRequest appends a request to its flow, assigns the next
	// sequence number and increments the flow's request count.
	AddRequest(req *types.Request) (int64, error)
	GetRequest(id int64) (*types.Request, error)
	// GetRequests returns the flow's requests in sequence order.
	GetRequests(flowID int64) ([]types.Request, error)

	AddTestCase(tc *types.TestCase) (int64, error)
	GetTestCase(id int64) (*types.TestCase, error)
	GetTestCases(filter TestCaseFilter) ([]types.TestCase, error)

	AddReplayedResponse(rr *types.ReplayedResponse) (int64, error)
	// GetReplayedResponse returns the latest recorded response for the
	// test case, or ErrNotFound if no replay was ever attempted.
	GetReplayedResponse(testCaseID int64) (*types.ReplayedResponse, error)

	AddAnomaly(a *types.Anomaly) (int64, error)
	GetAnomalies(filter AnomalyFilter) ([]types.Anomaly, error)

	// GetPayloadRules returns rules for a category, or all categories
	// when category is empty.
	GetPayloadRules(category string, enabledOnly bool) ([]types.MutationRule, error)
	AddPayloadRule(rule *types.MutationRule) (int64, error)
	SetRuleEnabled(id int64, enabled bool) error
	// DeletePayloadRules removes every rule in a category. The rule
	// catalog treats this as an explicit opt-out and will not re-seed.
	DeletePayloadRules(category string) error

	// GetConfig returns the stored value for key, or "" with no error
	// when the key is unset.
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	Close() error
}
