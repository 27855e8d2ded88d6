// Package detector classifies the differences between baseline and
// replayed responses into anomalies.
package detector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// contentLengthThreshold is the relative body size change above which
// the content-length detector fires.
const contentLengthThreshold = 0.10

// Classifier applies an ordered set of independent detectors to each
// (baseline, test case, replayed response) triple. Detectors never
// short-circuit each other; one comparison can yield several anomalies,
// including deliberate duplicates between the status-code and
// auth-content detectors.
type Classifier struct {
	store store.Store
}

// NewClassifier creates an anomaly classifier backed by the store.
func NewClassifier(s store.Store) *Classifier {
	return &Classifier{store: s}
}

// AnalyzeTestCase classifies one test case and persists the resulting
// anomalies. A missing replayed response is itself an anomaly, not an
// error.
func (c *Classifier) AnalyzeTestCase(testCaseID int64) ([]types.Anomaly, error) {
	tc, err := c.store.GetTestCase(testCaseID)
	if err != nil {
		return nil, &types.AnalysisError{Op: "get test case", TestCaseID: testCaseID, Err: err}
	}
	req, err := c.store.GetRequest(tc.RequestID)
	if err != nil {
		return nil, &types.AnalysisError{Op: "get original request", TestCaseID: testCaseID, Err: err}
	}
	resp, err := c.store.GetReplayedResponse(testCaseID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, &types.AnalysisError{Op: "get replayed response", TestCaseID: testCaseID, Err: err}
	}

	keywordRules, err := LoadKeywordRules(c.store)
	if err != nil {
		return nil, &types.AnalysisError{Op: "load keyword rules", TestCaseID: testCaseID, Err: err}
	}
	statusRules, err := LoadStatusCodeRules(c.store)
	if err != nil {
		return nil, &types.AnalysisError{Op: "load status code rules", TestCaseID: testCaseID, Err: err}
	}

	anomalies := Classify(req, tc, resp, keywordRules, statusRules)
	for i := range anomalies {
		id, err := c.store.AddAnomaly(&anomalies[i])
		if err != nil {
			return nil, &types.AnalysisError{Op: "persist anomaly", TestCaseID: testCaseID, Err: err}
		}
		anomalies[i].ID = id
	}
	return anomalies, nil
}

// AnalyzeFlow classifies every test case in the flow. Per-case failures
// are collected rather than aborting the batch: partial analysis results
// are more valuable than a hard stop.
func (c *Classifier) AnalyzeFlow(flowID int64) ([]types.Anomaly, *types.BatchOutcome, error) {
	cases, err := c.store.GetTestCases(store.TestCaseFilter{FlowID: flowID})
	if err != nil {
		return nil, nil, &types.AnalysisError{Op: "get flow test cases", Err: err}
	}

	var all []types.Anomaly
	outcome := &types.BatchOutcome{}
	for _, tc := range cases {
		anomalies, err := c.AnalyzeTestCase(tc.ID)
		if err != nil {
			outcome.Failed = append(outcome.Failed, types.BatchItem{ID: tc.ID, Error: err.Error()})
			continue
		}
		outcome.Succeeded = append(outcome.Succeeded, tc.ID)
		all = append(all, anomalies...)
	}
	return all, outcome, nil
}

// Classify runs the detector chain. resp may be nil, meaning no replay
// was ever attempted; that yields exactly one no_response anomaly and
// nothing else, since the remaining detectors need a response to compare.
func Classify(req *types.Request, tc *types.TestCase, resp *types.ReplayedResponse, keywordRules []KeywordRule, statusRules []StatusCodeRule) []types.Anomaly {
	if resp == nil {
		return []types.Anomaly{{
			TestCaseID:               tc.ID,
			Type:                     types.AnomalyNoResponse,
			Severity:                 types.SeverityHigh,
			Description:              "No replayed response was recorded for this test case.",
			ConfidenceScore:          1.0,
			IsPotentialVulnerability: true,
			VulnerabilityType:        types.VulnDenialOfService,
			OriginalStatus:           req.ResponseStatus,
		}}
	}

	base := types.Anomaly{
		TestCaseID:            tc.ID,
		ResponseID:            resp.ID,
		OriginalStatus:        req.ResponseStatus,
		ReplayedStatus:        resp.StatusCode,
		OriginalContentLength: req.ResponseContentLength,
		ReplayedContentLength: resp.ContentLength,
	}

	var anomalies []types.Anomaly
	if a := detectStatusCode(req, resp, statusRules, base); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := detectContentLength(req, resp, base); a != nil {
		anomalies = append(anomalies, *a)
	}
	anomalies = append(anomalies, detectKeywords(resp, keywordRules, base)...)
	anomalies = append(anomalies, detectAuthContent(req, tc, resp, base)...)
	if a := detectContentDrift(req, resp, base); a != nil {
		anomalies = append(anomalies, *a)
	}
	return anomalies
}

// detectStatusCode compares status codes, refining severity and
// vulnerability flags by fixed-priority tie-breaks: operator rule, then
// defensive 401/403 replies, then the auth-bypass signature, then 5xx
// error disclosure. First match wins.
func detectStatusCode(req *types.Request, resp *types.ReplayedResponse, statusRules []StatusCodeRule, base types.Anomaly) *types.Anomaly {
	if resp.StatusCode == req.ResponseStatus {
		return nil
	}

	a := base
	a.Type = types.AnomalyStatusCodeDiff
	a.Severity = types.SeverityMedium
	a.Description = fmt.Sprintf("Status code changed from %d to %d.", req.ResponseStatus, resp.StatusCode)

	switch {
	case applyStatusRule(&a, req.ResponseStatus, resp.StatusCode, statusRules):
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		a.Severity = types.SeverityLow
	case (req.ResponseStatus == 401 || req.ResponseStatus == 403) && resp.StatusCode == 200:
		a.Severity = types.SeverityHigh
		a.IsPotentialVulnerability = true
		a.VulnerabilityType = types.VulnUnauthorizedAccess
	case resp.StatusCode >= 500:
		a.Severity = types.SeverityHigh
		a.IsPotentialVulnerability = true
		a.VulnerabilityType = types.VulnErrorDisclosure
	}

	if a.IsPotentialVulnerability {
		a.ConfidenceScore = 0.8
	} else {
		a.ConfidenceScore = 0.5
	}
	return &a
}

func applyStatusRule(a *types.Anomaly, original, replayed int, statusRules []StatusCodeRule) bool {
	for _, r := range statusRules {
		if r.Original == original && r.Replayed == replayed {
			if r.Severity.Valid() {
				a.Severity = r.Severity
			}
			a.IsPotentialVulnerability = r.IsVulnerability
			a.VulnerabilityType = r.VulnerabilityType
			return true
		}
	}
	return false
}

// detectContentLength fires when both content lengths are known and the
// relative change exceeds 10% of the original.
func detectContentLength(req *types.Request, resp *types.ReplayedResponse, base types.Anomaly) *types.Anomaly {
	orig, replayed := req.ResponseContentLength, resp.ContentLength
	if orig == 0 || replayed == 0 {
		return nil
	}
	diff := replayed - orig
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) <= contentLengthThreshold*float64(orig) {
		return nil
	}

	a := base
	a.Type = types.AnomalyContentLength
	a.Severity = types.SeverityLow
	a.ConfidenceScore = 0.6
	a.Description = fmt.Sprintf("Response size changed from %d to %d bytes.", orig, replayed)
	return &a
}

func detectKeywords(resp *types.ReplayedResponse, keywordRules []KeywordRule, base types.Anomaly) []types.Anomaly {
	if len(keywordRules) == 0 {
		return nil
	}
	body := strings.ToLower(string(resp.Body))

	var anomalies []types.Anomaly
	for _, r := range keywordRules {
		if r.Keyword == "" || !strings.Contains(body, strings.ToLower(r.Keyword)) {
			continue
		}
		a := base
		a.Type = r.Type
		a.Severity = r.Severity
		a.ConfidenceScore = 0.9
		a.IsPotentialVulnerability = true
		a.VulnerabilityType = r.Type
		a.Description = fmt.Sprintf("Replayed response body contains keyword %q.", r.Keyword)
		anomalies = append(anomalies, a)
	}
	return anomalies
}

// detectAuthContent runs only for auth-category test cases. Its bypass
// finding intentionally duplicates the status-code detector's: the two
// detectors are independent and never deduplicated.
func detectAuthContent(req *types.Request, tc *types.TestCase, resp *types.ReplayedResponse, base types.Anomaly) []types.Anomaly {
	if tc.Category != types.CategoryAuth {
		return nil
	}

	if (req.ResponseStatus == 401 || req.ResponseStatus == 403) && resp.StatusCode == 200 {
		a := base
		a.Type = types.AnomalyUnauthorized
		a.Severity = types.SeverityCritical
		a.ConfidenceScore = 1.0
		a.IsPotentialVulnerability = true
		a.VulnerabilityType = types.VulnUnauthorizedAccess
		a.Description = "Endpoint that originally rejected the request returned 200 under a mutated credential."
		return []types.Anomaly{a}
	}

	origBody := strings.ToLower(string(req.ResponseBody))
	replBody := strings.ToLower(string(resp.Body))
	if strings.Contains(replBody, "success") && !strings.Contains(origBody, "success") {
		a := base
		a.Type = types.AnomalyUnauthorized
		a.Severity = types.SeverityHigh
		a.ConfidenceScore = 0.9
		a.IsPotentialVulnerability = true
		a.VulnerabilityType = types.VulnUnauthorizedAccess
		a.Description = "Replayed response body signals success where the original did not."
		return []types.Anomaly{a}
	}
	return nil
}

func detectContentDrift(req *types.Request, resp *types.ReplayedResponse, base types.Anomaly) *types.Anomaly {
	origBody := strings.ToLower(string(req.ResponseBody))
	replBody := strings.ToLower(string(resp.Body))
	if origBody == replBody {
		return nil
	}
	if !strings.Contains(replBody, "error") || strings.Contains(origBody, "error") {
		return nil
	}

	a := base
	a.Type = types.AnomalyErrorDisclosure
	a.Severity = types.SeverityMedium
	a.ConfidenceScore = 0.7
	a.IsPotentialVulnerability = true
	a.VulnerabilityType = types.VulnErrorDisclosure
	a.Description = "Replayed response body contains error content absent from the original."
	return &a
}
