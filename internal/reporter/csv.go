package reporter

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
)

// CSVReporter renders one row per finding for spreadsheet triage.
type CSVReporter struct{}

// Format returns the format name.
func (r *CSVReporter) Format() string { return "csv" }

// Extension returns the file extension.
func (r *CSVReporter) Extension() string { return "csv" }

// Generate renders the report.
func (r *CSVReporter) Generate(report *FlowReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(report, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the report to w.
func (r *CSVReporter) Write(report *FlowReport, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"anomaly_id", "test_case_id", "type", "severity", "confidence",
		"risk", "is_vulnerability", "vulnerability_type", "test_category",
		"mutation", "payload", "original_status", "replayed_status", "description",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range report.Findings {
		a := f.Anomaly
		row := []string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.TestCaseID, 10),
			a.Type,
			string(a.Severity),
			strconv.FormatFloat(a.ConfidenceScore, 'f', 2, 64),
			strconv.FormatFloat(f.Risk, 'f', 2, 64),
			strconv.FormatBool(a.IsPotentialVulnerability),
			a.VulnerabilityType,
			f.Category,
			f.Mutation,
			f.Payload,
			strconv.Itoa(a.OriginalStatus),
			strconv.Itoa(a.ReplayedStatus),
			a.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
