package store

import (
	"sync"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. All
// methods are safe for concurrent use; per-key read-modify-write (the
// flow request count) is serialized by the store mutex.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    map[string]int64
	flows     map[int64]*types.Flow
	requests  map[int64]*types.Request
	testCases map[int64]*types.TestCase
	responses map[int64][]*types.ReplayedResponse // keyed by test case id
	anomalies []*types.Anomaly
	rules     map[int64]*types.MutationRule
	config    map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    make(map[string]int64),
		flows:     make(map[int64]*types.Flow),
		requests:  make(map[int64]*types.Request),
		testCases: make(map[int64]*types.TestCase),
		responses: make(map[int64][]*types.ReplayedResponse),
		rules:     make(map[int64]*types.MutationRule),
		config:    make(map[string]string),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) next(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// CreateFlow creates a new flow and returns its id.
func (s *MemoryStore) CreateFlow(name, target, description string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next("flow")
	s.flows[id] = &types.Flow{
		ID:          id,
		Name:        name,
		Target:      target,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

// GetFlow returns the flow with the given id.
func (s *MemoryStore) GetFlow(id int64) (*types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// ListFlows returns all flows, newest first.
func (s *MemoryStore) ListFlows() ([]types.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flows []types.Flow
	for id := s.nextID["flow"]; id >= 1; id-- {
		if f, ok := s.flows[id]; ok {
			flows = append(flows, *f)
		}
	}
	return flows, nil
}

// AddRequest appends a request to its flow and assigns the next sequence number.
func (s *MemoryStore) AddRequest(req *types.Request) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[req.FlowID]
	if !ok {
		return 0, ErrNotFound
	}
	flow.RequestCount++

	id := s.next("request")
	cp := *req
	cp.ID = id
	cp.SequenceNumber = flow.RequestCount
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	cp.Headers = copyHeaders(req.Headers)
	cp.ResponseHeaders = copyHeaders(req.ResponseHeaders)
	s.requests[id] = &cp

	req.ID = id
	req.SequenceNumber = cp.SequenceNumber
	req.Timestamp = cp.Timestamp
	return id, nil
}

// GetRequest returns the request with the given id.
func (s *MemoryStore) GetRequest(id int64) (*types.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetRequests returns the flow's requests in sequence order.
func (s *MemoryStore) GetRequests(flowID int64) ([]types.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []types.Request
	for id := int64(1); id <= s.nextID["request"]; id++ {
		if r, ok := s.requests[id]; ok && r.FlowID == flowID {
			reqs = append(reqs, *r)
		}
	}
	return reqs, nil
}

// AddTestCase persists a generated test case and returns its id.
func (s *MemoryStore) AddTestCase(tc *types.TestCase) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next("test_case")
	cp := *tc
	cp.ID = id
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.ModifiedHeaders = copyHeaders(tc.ModifiedHeaders)
	s.testCases[id] = &cp

	tc.ID = id
	tc.CreatedAt = cp.CreatedAt
	return id, nil
}

// GetTestCase returns the test case with the given id.
func (s *MemoryStore) GetTestCase(id int64) (*types.TestCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tc, ok := s.testCases[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tc
	return &cp, nil
}

// GetTestCases returns test cases matching the filter, oldest first.
func (s *MemoryStore) GetTestCases(filter TestCaseFilter) ([]types.TestCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cases []types.TestCase
	for id := int64(1); id <= s.nextID["test_case"]; id++ {
		tc, ok := s.testCases[id]
		if !ok {
			continue
		}
		if filter.FlowID != 0 && tc.FlowID != filter.FlowID {
			continue
		}
		if filter.RequestID != 0 && tc.RequestID != filter.RequestID {
			continue
		}
		cases = append(cases, *tc)
	}
	return cases, nil
}

// AddReplayedResponse records the outcome of executing a test case.
func (s *MemoryStore) AddReplayedResponse(rr *types.ReplayedResponse) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next("response")
	cp := *rr
	cp.ID = id
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	cp.Headers = copyHeaders(rr.Headers)
	s.responses[rr.TestCaseID] = append(s.responses[rr.TestCaseID], &cp)

	rr.ID = id
	rr.Timestamp = cp.Timestamp
	return id, nil
}

// GetReplayedResponse returns the latest replayed response for the test case.
func (s *MemoryStore) GetReplayedResponse(testCaseID int64) (*types.ReplayedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.responses[testCaseID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	cp := *history[len(history)-1]
	return &cp, nil
}

// AddAnomaly persists a classified anomaly and returns its id.
func (s *MemoryStore) AddAnomaly(a *types.Anomaly) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next("anomaly")
	cp := *a
	cp.ID = id
	if cp.DetectedAt.IsZero() {
		cp.DetectedAt = time.Now().UTC()
	}
	s.anomalies = append(s.anomalies, &cp)

	a.ID = id
	a.DetectedAt = cp.DetectedAt
	return id, nil
}

// GetAnomalies returns anomalies matching the filter, oldest first.
func (s *MemoryStore) GetAnomalies(filter AnomalyFilter) ([]types.Anomaly, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Anomaly
	for _, a := range s.anomalies {
		if filter.TestCaseID != 0 && a.TestCaseID != filter.TestCaseID {
			continue
		}
		if filter.FlowID != 0 {
			tc, ok := s.testCases[a.TestCaseID]
			if !ok || tc.FlowID != filter.FlowID {
				continue
			}
		}
		out = append(out, *a)
	}
	return out, nil
}

// GetPayloadRules returns mutation rules, optionally filtered.
func (s *MemoryStore) GetPayloadRules(category string, enabledOnly bool) ([]types.MutationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rules []types.MutationRule
	for id := int64(1); id <= s.nextID["rule"]; id++ {
		r, ok := s.rules[id]
		if !ok {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		if enabledOnly && !r.Enabled {
			continue
		}
		rules = append(rules, *r)
	}
	return rules, nil
}

// AddPayloadRule persists a mutation rule and returns its id.
func (s *MemoryStore) AddPayloadRule(rule *types.MutationRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next("rule")
	cp := *rule
	cp.ID = id
	s.rules[id] = &cp

	rule.ID = id
	return id, nil
}

// SetRuleEnabled toggles a rule's enabled flag.
func (s *MemoryStore) SetRuleEnabled(id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return ErrNotFound
	}
	r.Enabled = enabled
	return nil
}

// DeletePayloadRules removes every rule in a category.
func (s *MemoryStore) DeletePayloadRules(category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.rules {
		if r.Category == category {
			delete(s.rules, id)
		}
	}
	return nil
}

// GetConfig returns the stored value for key, or "" when unset.
func (s *MemoryStore) GetConfig(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config[key], nil
}

// SetConfig stores a key/value pair.
func (s *MemoryStore) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}
