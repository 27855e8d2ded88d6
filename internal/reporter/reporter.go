// Package reporter renders flow analysis results as JSON, HTML or CSV.
package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MohammedMogeab/anomaly-detector/internal/risk"
	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// Reporter renders a flow report in one output format.
type Reporter interface {
	Generate(report *FlowReport) ([]byte, error)
	Write(report *FlowReport, w io.Writer) error
	Format() string
	Extension() string
}

// NewReporter creates a reporter for the named format.
func NewReporter(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONReporter{}, nil
	case "html":
		return &HTMLReporter{}, nil
	case "csv":
		return &CSVReporter{}, nil
	}
	return nil, fmt.Errorf("unsupported report format: %s", format)
}

// FlowReport is the assembled result of one flow's analysis.
type FlowReport struct {
	ReportID     string        `json:"report_id"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Flow         types.Flow    `json:"flow"`
	RiskScore    float64       `json:"risk_score"`
	RiskCategory string        `json:"risk_category"`
	Summary      ReportSummary `json:"summary"`
	Findings     []Finding     `json:"findings"`
}

// ReportSummary aggregates counts for the report header.
type ReportSummary struct {
	TotalRequests            int            `json:"total_requests"`
	TotalTestCases           int            `json:"total_test_cases"`
	TotalAnomalies           int            `json:"total_anomalies"`
	PotentialVulnerabilities int            `json:"potential_vulnerabilities"`
	BySeverity               map[string]int `json:"by_severity"`
	ByType                   map[string]int `json:"by_type"`
}

// Finding pairs an anomaly with the test case that produced it.
type Finding struct {
	Anomaly  types.Anomaly `json:"anomaly"`
	Risk     float64       `json:"risk"`
	Category string        `json:"test_category,omitempty"`
	Mutation string        `json:"mutation,omitempty"`
	Payload  string        `json:"payload,omitempty"`
}

// BuildFlowReport assembles a report for one flow from the store,
// findings sorted by severity, highest first.
func BuildFlowReport(s store.Store, flowID int64) (*FlowReport, error) {
	flow, err := s.GetFlow(flowID)
	if err != nil {
		return nil, err
	}
	cases, err := s.GetTestCases(store.TestCaseFilter{FlowID: flowID})
	if err != nil {
		return nil, err
	}
	anomalies, err := s.GetAnomalies(store.AnomalyFilter{FlowID: flowID})
	if err != nil {
		return nil, err
	}

	casesByID := make(map[int64]types.TestCase, len(cases))
	for _, tc := range cases {
		casesByID[tc.ID] = tc
	}

	report := &FlowReport{
		ReportID:     uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		Flow:         *flow,
		RiskScore:    risk.FlowRisk(anomalies),
		RiskCategory: risk.Categorize(risk.FlowRisk(anomalies)),
		Summary: ReportSummary{
			TotalRequests:  flow.RequestCount,
			TotalTestCases: len(cases),
			TotalAnomalies: len(anomalies),
			BySeverity:     map[string]int{},
			ByType:         map[string]int{},
		},
	}

	for _, a := range anomalies {
		report.Summary.BySeverity[string(a.Severity)]++
		report.Summary.ByType[a.Type]++
		if a.IsPotentialVulnerability {
			report.Summary.PotentialVulnerabilities++
		}
		f := Finding{Anomaly: a, Risk: risk.AnomalyRisk(&a)}
		if tc, ok := casesByID[a.TestCaseID]; ok {
			f.Category = tc.Category
			f.Mutation = tc.Type
			f.Payload = tc.PayloadValue
		}
		report.Findings = append(report.Findings, f)
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i].Anomaly, report.Findings[j].Anomaly
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.ConfidenceScore > b.ConfidenceScore
	})
	return report, nil
}

// WriteToFile renders the report to the named file, creating parent
// directories as needed.
func WriteToFile(r Reporter, report *FlowReport, filename string) error {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()
	return r.Write(report, file)
}

// severityOrder lists severities from most to least severe for stable
// rendering of distributions.
var severityOrder = []types.Severity{
	types.SeverityCritical,
	types.SeverityHigh,
	types.SeverityMedium,
	types.SeverityLow,
	types.SeverityInfo,
}
