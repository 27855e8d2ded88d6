package reporter

import (
	"encoding/json"
	"io"
)

// JSONReporter renders the report as indented JSON.
type JSONReporter struct{}

// Format returns the format name.
func (r *JSONReporter) Format() string { return "json" }

// Extension returns the file extension.
func (r *JSONReporter) Extension() string { return "json" }

// Generate renders the report.
func (r *JSONReporter) Generate(report *FlowReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// Write renders the report to w.
func (r *JSONReporter) Write(report *FlowReport, w io.Writer) error {
	data, err := r.Generate(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
