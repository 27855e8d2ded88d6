package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// backends returns every Store implementation under a fresh state, so
// each behavior test runs against both the in-memory and SQLite stores.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestFlowLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.CreateFlow("checkout", "https://api.example.com", "purchase flow")
			if err != nil {
				t.Fatal(err)
			}
			second, err := s.CreateFlow("signup", "https://api.example.com", "")
			if err != nil {
				t.Fatal(err)
			}

			flow, err := s.GetFlow(first)
			if err != nil {
				t.Fatal(err)
			}
			if flow.Name != "checkout" || flow.Target != "https://api.example.com" || flow.RequestCount != 0 {
				t.Errorf("flow = %+v", flow)
			}

			flows, err := s.ListFlows()
			if err != nil {
				t.Fatal(err)
			}
			if len(flows) != 2 || flows[0].ID != second || flows[1].ID != first {
				t.Errorf("ListFlows order = %v, want newest first", flows)
			}

			if _, err := s.GetFlow(9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing flow: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestAddRequestAssignsSequence(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flowID, err := s.CreateFlow("flow", "https://t", "")
			if err != nil {
				t.Fatal(err)
			}

			for i, url := range []string{"https://t/a", "https://t/b", "https://t/c"} {
				req := &types.Request{
					FlowID:  flowID,
					URL:     url,
					Method:  "GET",
					Headers: map[string]string{"Authorization": "Bearer x"},
				}
				if _, err := s.AddRequest(req); err != nil {
					t.Fatal(err)
				}
				if req.SequenceNumber != i+1 {
					t.Errorf("request %d: sequence = %d, want %d", i, req.SequenceNumber, i+1)
				}
			}

			flow, err := s.GetFlow(flowID)
			if err != nil {
				t.Fatal(err)
			}
			if flow.RequestCount != 3 {
				t.Errorf("RequestCount = %d, want 3", flow.RequestCount)
			}

			reqs, err := s.GetRequests(flowID)
			if err != nil {
				t.Fatal(err)
			}
			if len(reqs) != 3 || reqs[0].URL != "https://t/a" || reqs[2].URL != "https://t/c" {
				t.Errorf("GetRequests = %v", reqs)
			}
			if reqs[0].Headers["Authorization"] != "Bearer x" {
				t.Errorf("headers not persisted: %v", reqs[0].Headers)
			}

			if _, err := s.AddRequest(&types.Request{FlowID: 9999, URL: "https://t", Method: "GET"}); !errors.Is(err, ErrNotFound) {
				t.Errorf("request for missing flow: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestTestCaseHeaderOverrideRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flowID, _ := s.CreateFlow("flow", "https://t", "")
			reqID, err := s.AddRequest(&types.Request{FlowID: flowID, URL: "https://t/a", Method: "GET"})
			if err != nil {
				t.Fatal(err)
			}

			// A nil header map means "use the baseline headers"; an empty
			// non-nil map means "replace them with nothing". The store must
			// keep the two apart.
			noOverride := &types.TestCase{
				FlowID: flowID, RequestID: reqID,
				Type: types.RuleIDIncrement, Category: types.CategoryNumeric,
			}
			emptyOverride := &types.TestCase{
				FlowID: flowID, RequestID: reqID,
				Type: types.RuleNoToken, Category: types.CategoryAuth,
				ModifiedHeaders: map[string]string{},
			}
			for _, tc := range []*types.TestCase{noOverride, emptyOverride} {
				if _, err := s.AddTestCase(tc); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.GetTestCase(noOverride.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.HasModifiedHeaders() {
				t.Error("nil header override came back non-nil")
			}
			got, err = s.GetTestCase(emptyOverride.ID)
			if err != nil {
				t.Fatal(err)
			}
			if !got.HasModifiedHeaders() {
				t.Error("empty header override came back nil")
			}
		})
	}
}

func TestTestCaseFilters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flowA, _ := s.CreateFlow("a", "https://t", "")
			flowB, _ := s.CreateFlow("b", "https://t", "")
			reqA, _ := s.AddRequest(&types.Request{FlowID: flowA, URL: "https://t/a", Method: "GET"})
			reqB, _ := s.AddRequest(&types.Request{FlowID: flowB, URL: "https://t/b", Method: "GET"})

			for _, tc := range []*types.TestCase{
				{FlowID: flowA, RequestID: reqA, Type: types.RuleIDIncrement, Category: types.CategoryNumeric},
				{FlowID: flowA, RequestID: reqA, Type: types.RuleNoToken, Category: types.CategoryAuth},
				{FlowID: flowB, RequestID: reqB, Type: types.RuleIDIncrement, Category: types.CategoryNumeric},
			} {
				if _, err := s.AddTestCase(tc); err != nil {
					t.Fatal(err)
				}
			}

			byFlow, err := s.GetTestCases(TestCaseFilter{FlowID: flowA})
			if err != nil {
				t.Fatal(err)
			}
			if len(byFlow) != 2 {
				t.Errorf("flow filter: got %d cases, want 2", len(byFlow))
			}
			byRequest, err := s.GetTestCases(TestCaseFilter{RequestID: reqB})
			if err != nil {
				t.Fatal(err)
			}
			if len(byRequest) != 1 || byRequest[0].FlowID != flowB {
				t.Errorf("request filter = %v", byRequest)
			}
		})
	}
}

func TestReplayedResponseLatestWins(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flowID, _ := s.CreateFlow("flow", "https://t", "")
			reqID, _ := s.AddRequest(&types.Request{FlowID: flowID, URL: "https://t/a", Method: "GET"})
			tc := &types.TestCase{FlowID: flowID, RequestID: reqID, Type: types.RuleIDIncrement, Category: types.CategoryNumeric}
			if _, err := s.AddTestCase(tc); err != nil {
				t.Fatal(err)
			}

			if _, err := s.GetReplayedResponse(tc.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("no response yet: err = %v, want ErrNotFound", err)
			}

			for _, status := range []int{500, 200} {
				rr := &types.ReplayedResponse{TestCaseID: tc.ID, StatusCode: status, Body: []byte("body"), ContentLength: 4}
				if _, err := s.AddReplayedResponse(rr); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.GetReplayedResponse(tc.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.StatusCode != 200 {
				t.Errorf("StatusCode = %d, want latest replay (200)", got.StatusCode)
			}
		})
	}
}

func TestAnomalyFlowFilterJoinsTestCases(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flowA, _ := s.CreateFlow("a", "https://t", "")
			flowB, _ := s.CreateFlow("b", "https://t", "")
			reqA, _ := s.AddRequest(&types.Request{FlowID: flowA, URL: "https://t/a", Method: "GET"})
			reqB, _ := s.AddRequest(&types.Request{FlowID: flowB, URL: "https://t/b", Method: "GET"})
			tcA := &types.TestCase{FlowID: flowA, RequestID: reqA, Type: types.RuleNoToken, Category: types.CategoryAuth}
			tcB := &types.TestCase{FlowID: flowB, RequestID: reqB, Type: types.RuleNoToken, Category: types.CategoryAuth}
			s.AddTestCase(tcA)
			s.AddTestCase(tcB)

			for _, a := range []*types.Anomaly{
				{TestCaseID: tcA.ID, Type: types.AnomalyStatusCodeDiff, Severity: types.SeverityHigh, ConfidenceScore: 0.8},
				{TestCaseID: tcB.ID, Type: types.AnomalyStatusCodeDiff, Severity: types.SeverityLow, ConfidenceScore: 0.5},
			} {
				if _, err := s.AddAnomaly(a); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.GetAnomalies(AnomalyFilter{FlowID: flowA})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].TestCaseID != tcA.ID || got[0].Severity != types.SeverityHigh {
				t.Errorf("flow filter = %v", got)
			}

			byCase, err := s.GetAnomalies(AnomalyFilter{TestCaseID: tcB.ID})
			if err != nil {
				t.Fatal(err)
			}
			if len(byCase) != 1 || byCase[0].Severity != types.SeverityLow {
				t.Errorf("test case filter = %v", byCase)
			}
		})
	}
}

func TestPayloadRules(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			numeric := &types.MutationRule{
				Category: types.CategoryNumeric, Type: types.RuleIDIncrement,
				Params: types.DeltaParams{Delta: 1}, Enabled: true,
			}
			auth := &types.MutationRule{
				Category: types.CategoryAuth, Type: types.RuleNoToken,
				Params: types.HeaderRemoveParams{HeaderName: "Authorization"}, Enabled: false,
			}
			for _, r := range []*types.MutationRule{numeric, auth} {
				if _, err := s.AddPayloadRule(r); err != nil {
					t.Fatal(err)
				}
			}

			all, err := s.GetPayloadRules("", false)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 2 {
				t.Fatalf("got %d rules, want 2", len(all))
			}
			// Params round-trip through their typed form.
			if p, ok := all[0].Params.(types.DeltaParams); !ok || p.Delta != 1 {
				t.Errorf("numeric params = %#v", all[0].Params)
			}

			enabled, err := s.GetPayloadRules("", true)
			if err != nil {
				t.Fatal(err)
			}
			if len(enabled) != 1 || enabled[0].Type != types.RuleIDIncrement {
				t.Errorf("enabled rules = %v", enabled)
			}

			if err := s.SetRuleEnabled(auth.ID, true); err != nil {
				t.Fatal(err)
			}
			if err := s.SetRuleEnabled(9999, true); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing rule: err = %v, want ErrNotFound", err)
			}

			if err := s.DeletePayloadRules(types.CategoryNumeric); err != nil {
				t.Fatal(err)
			}
			left, err := s.GetPayloadRules("", false)
			if err != nil {
				t.Fatal(err)
			}
			if len(left) != 1 || left[0].Category != types.CategoryAuth {
				t.Errorf("after delete = %v", left)
			}
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			value, err := s.GetConfig("missing")
			if err != nil || value != "" {
				t.Errorf("unset key: value = %q, err = %v", value, err)
			}

			if err := s.SetConfig("max_concurrent_requests", "5"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetConfig("max_concurrent_requests", "7"); err != nil {
				t.Fatal(err)
			}
			value, err = s.GetConfig("max_concurrent_requests")
			if err != nil || value != "7" {
				t.Errorf("value = %q, err = %v, want overwrite to stick", value, err)
			}
		})
	}
}
