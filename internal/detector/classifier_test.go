package detector

import (
	"testing"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

func baselineRequest(status int, body string) *types.Request {
	return &types.Request{
		ID:                    1,
		FlowID:                1,
		ResponseStatus:        status,
		ResponseBody:          []byte(body),
		ResponseContentLength: int64(len(body)),
	}
}

func replayed(status int, body string) *types.ReplayedResponse {
	return &types.ReplayedResponse{
		ID:            7,
		TestCaseID:    3,
		StatusCode:    status,
		Body:          []byte(body),
		ContentLength: int64(len(body)),
	}
}

func TestClassifyMissingReplayIsExclusive(t *testing.T) {
	req := baselineRequest(200, `{"ok":true}`)
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryAuth}

	anomalies := Classify(req, tc, nil, []KeywordRule{{Keyword: "ok", Type: "leak", Severity: types.SeverityHigh}}, nil)
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want exactly 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Type != types.AnomalyNoResponse {
		t.Errorf("Type = %q, want no_response", a.Type)
	}
	if a.Severity != types.SeverityHigh || a.ConfidenceScore != 1.0 {
		t.Errorf("severity/confidence = %s/%.1f, want High/1.0", a.Severity, a.ConfidenceScore)
	}
	if !a.IsPotentialVulnerability || a.VulnerabilityType != types.VulnDenialOfService {
		t.Errorf("vulnerability = %v/%q, want true/denial_of_service", a.IsPotentialVulnerability, a.VulnerabilityType)
	}
}

func TestStatusCodeTieBreaks(t *testing.T) {
	tests := []struct {
		name         string
		original     int
		replayedCode int
		rules        []StatusCodeRule
		wantSeverity types.Severity
		wantVuln     bool
		wantVulnType string
		wantConf     float64
	}{
		{
			name:     "auth bypass beats defensive rule",
			original: 401, replayedCode: 200,
			wantSeverity: types.SeverityHigh, wantVuln: true,
			wantVulnType: types.VulnUnauthorizedAccess, wantConf: 0.8,
		},
		{
			name:     "replayed 401 is defensive",
			original: 200, replayedCode: 401,
			wantSeverity: types.SeverityLow, wantConf: 0.5,
		},
		{
			name:     "replayed 403 is defensive",
			original: 500, replayedCode: 403,
			wantSeverity: types.SeverityLow, wantConf: 0.5,
		},
		{
			name:     "server error discloses",
			original: 200, replayedCode: 500,
			wantSeverity: types.SeverityHigh, wantVuln: true,
			wantVulnType: types.VulnErrorDisclosure, wantConf: 0.8,
		},
		{
			name:     "plain difference stays medium",
			original: 200, replayedCode: 404,
			wantSeverity: types.SeverityMedium, wantConf: 0.5,
		},
		{
			name:     "operator rule overrides defensive tie-break",
			original: 200, replayedCode: 401,
			rules: []StatusCodeRule{{
				Original: 200, Replayed: 401,
				Severity: types.SeverityCritical, IsVulnerability: true, VulnerabilityType: "auth_probe",
			}},
			wantSeverity: types.SeverityCritical, wantVuln: true,
			wantVulnType: "auth_probe", wantConf: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baselineRequest(tt.original, "")
			tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryNumeric}
			anomalies := Classify(req, tc, replayed(tt.replayedCode, ""), nil, tt.rules)

			var status *types.Anomaly
			for i := range anomalies {
				if anomalies[i].Type == types.AnomalyStatusCodeDiff {
					status = &anomalies[i]
				}
			}
			if status == nil {
				t.Fatal("no status_code_diff anomaly emitted")
			}
			if status.Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", status.Severity, tt.wantSeverity)
			}
			if status.IsPotentialVulnerability != tt.wantVuln {
				t.Errorf("IsPotentialVulnerability = %v, want %v", status.IsPotentialVulnerability, tt.wantVuln)
			}
			if status.VulnerabilityType != tt.wantVulnType {
				t.Errorf("VulnerabilityType = %q, want %q", status.VulnerabilityType, tt.wantVulnType)
			}
			if status.ConfidenceScore != tt.wantConf {
				t.Errorf("ConfidenceScore = %.2f, want %.2f", status.ConfidenceScore, tt.wantConf)
			}
		})
	}
}

func TestStatusCodeDetectorSilentOnEqualStatus(t *testing.T) {
	req := baselineRequest(200, "")
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryNumeric}
	for _, a := range Classify(req, tc, replayed(200, ""), nil, nil) {
		if a.Type == types.AnomalyStatusCodeDiff {
			t.Fatal("status_code_diff emitted for identical status codes")
		}
	}
}

func TestContentLengthVariation(t *testing.T) {
	req := baselineRequest(200, "0123456789") // 10 bytes
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryNumeric}

	// 12 bytes: 20% over baseline.
	anomalies := Classify(req, tc, replayed(200, "012345678901"), nil, nil)
	var found bool
	for _, a := range anomalies {
		if a.Type == types.AnomalyContentLength {
			found = true
			if a.Severity != types.SeverityLow || a.ConfidenceScore != 0.6 {
				t.Errorf("severity/confidence = %s/%.1f, want Low/0.6", a.Severity, a.ConfidenceScore)
			}
		}
	}
	if !found {
		t.Error("content_length_variation not emitted for 20% change")
	}

	// 10 -> 11 bytes is exactly 10%: inside tolerance.
	for _, a := range Classify(req, tc, replayed(200, "01234567890"), nil, nil) {
		if a.Type == types.AnomalyContentLength {
			t.Error("content_length_variation emitted at the 10% boundary")
		}
	}
}

func TestKeywordRules(t *testing.T) {
	req := baselineRequest(200, "fine")
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryString}
	rules := []KeywordRule{
		{Keyword: "SQL syntax", Type: "sql_error", Severity: types.SeverityHigh},
		{Keyword: "stacktrace", Type: "debug_leak", Severity: types.SeverityMedium},
	}

	anomalies := Classify(req, tc, replayed(200, "You have an error in your sql SYNTAX near"), rules, nil)
	var matched []types.Anomaly
	for _, a := range anomalies {
		if a.Type == "sql_error" || a.Type == "debug_leak" {
			matched = append(matched, a)
		}
	}
	if len(matched) != 1 {
		t.Fatalf("got %d keyword anomalies, want 1", len(matched))
	}
	a := matched[0]
	if a.Type != "sql_error" || a.Severity != types.SeverityHigh {
		t.Errorf("type/severity = %s/%s", a.Type, a.Severity)
	}
	if a.ConfidenceScore != 0.9 || !a.IsPotentialVulnerability || a.VulnerabilityType != "sql_error" {
		t.Errorf("conf/vuln/type = %.1f/%v/%q", a.ConfidenceScore, a.IsPotentialVulnerability, a.VulnerabilityType)
	}
}

func TestAuthBypassEmitsExactlyTwoAnomalies(t *testing.T) {
	req := baselineRequest(403, `{"error":"forbidden"}`)
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryAuth}

	anomalies := Classify(req, tc, replayed(200, `{"success":true,"id":9}`), nil, nil)
	if len(anomalies) != 2 {
		t.Fatalf("got %d anomalies, want exactly 2 (duplication is expected): %+v", len(anomalies), anomalies)
	}

	byType := map[string]types.Anomaly{}
	for _, a := range anomalies {
		byType[a.Type] = a
	}
	status, ok := byType[types.AnomalyStatusCodeDiff]
	if !ok {
		t.Fatal("missing status_code_diff anomaly")
	}
	if status.Severity != types.SeverityHigh || status.VulnerabilityType != types.VulnUnauthorizedAccess {
		t.Errorf("status anomaly = %s/%q, want High/unauthorized_access", status.Severity, status.VulnerabilityType)
	}
	auth, ok := byType[types.AnomalyUnauthorized]
	if !ok {
		t.Fatal("missing unauthorized_access anomaly")
	}
	if auth.Severity != types.SeverityCritical || auth.ConfidenceScore != 1.0 {
		t.Errorf("auth anomaly = %s/%.1f, want Critical/1.0", auth.Severity, auth.ConfidenceScore)
	}
}

func TestAuthSuccessDriftWithoutStatusChange(t *testing.T) {
	req := baselineRequest(200, `{"status":"pending"}`)
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryAuth}

	anomalies := Classify(req, tc, replayed(200, `{"status":"SUCCESS"}`), nil, nil)
	var auth *types.Anomaly
	for i := range anomalies {
		if anomalies[i].Type == types.AnomalyUnauthorized {
			auth = &anomalies[i]
		}
	}
	if auth == nil {
		t.Fatal("success drift not detected")
	}
	if auth.Severity != types.SeverityHigh || auth.ConfidenceScore != 0.9 {
		t.Errorf("severity/confidence = %s/%.1f, want High/0.9", auth.Severity, auth.ConfidenceScore)
	}
}

func TestContentDriftErrorDisclosure(t *testing.T) {
	req := baselineRequest(200, `{"items":[]}`)
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryString}

	anomalies := Classify(req, tc, replayed(200, `{"Error":"oops"}`), nil, nil)
	var drift *types.Anomaly
	for i := range anomalies {
		if anomalies[i].Type == types.AnomalyErrorDisclosure {
			drift = &anomalies[i]
		}
	}
	if drift == nil {
		t.Fatal("error disclosure drift not detected")
	}
	if drift.Severity != types.SeverityMedium || drift.ConfidenceScore != 0.7 {
		t.Errorf("severity/confidence = %s/%.1f, want Medium/0.7", drift.Severity, drift.ConfidenceScore)
	}
}

// A replayed 200 carrying a different record of the same shape produces
// zero anomalies: structural diffing alone cannot see semantic IDOR
// without a content-aware keyword rule.
func TestSameStatusDifferentRecordYieldsNoAnomalies(t *testing.T) {
	req := baselineRequest(200, `{"order":42,"owner":"alice"}`)
	tc := &types.TestCase{ID: 3, RequestID: 1, Category: types.CategoryNumeric}

	anomalies := Classify(req, tc, replayed(200, `{"order":43,"owner":"brian"}`), nil, nil)
	if len(anomalies) != 0 {
		t.Fatalf("got %d anomalies, want 0: %+v", len(anomalies), anomalies)
	}
}

func TestAnalyzeFlowCollectsPartialFailures(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()

	flowID, err := s.CreateFlow("flow", "https://api.example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	reqID, err := s.AddRequest(&types.Request{
		FlowID:         flowID,
		URL:            "https://api.example.com/a",
		Method:         "GET",
		ResponseStatus: 200,
	})
	if err != nil {
		t.Fatal(err)
	}

	// One healthy case with a replayed response, one case referencing a
	// request that does not exist.
	okID, err := s.AddTestCase(&types.TestCase{FlowID: flowID, RequestID: reqID, Type: types.RuleNoToken, Category: types.CategoryAuth})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddReplayedResponse(&types.ReplayedResponse{TestCaseID: okID, StatusCode: 500, Body: []byte("boom")}); err != nil {
		t.Fatal(err)
	}
	brokenID, err := s.AddTestCase(&types.TestCase{FlowID: flowID, RequestID: 9999, Type: types.RuleNoToken, Category: types.CategoryAuth})
	if err != nil {
		t.Fatal(err)
	}

	c := NewClassifier(s)
	anomalies, outcome, err := c.AnalyzeFlow(flowID)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Succeeded) != 1 || outcome.Succeeded[0] != okID {
		t.Errorf("Succeeded = %v, want [%d]", outcome.Succeeded, okID)
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0].ID != brokenID {
		t.Errorf("Failed = %v, want broken case %d", outcome.Failed, brokenID)
	}
	if len(anomalies) == 0 {
		t.Error("healthy case produced no anomalies despite 200 -> 500")
	}

	stored, err := s.GetAnomalies(store.AnomalyFilter{FlowID: flowID})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(anomalies) {
		t.Errorf("store has %d anomalies, classifier returned %d", len(stored), len(anomalies))
	}
}
