package reporter

import (
	"bytes"
	"html/template"
	"io"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// HTMLReporter renders a standalone HTML page with a severity
// distribution chart and a sortable findings table.
type HTMLReporter struct{}

// Format returns the format name.
func (r *HTMLReporter) Format() string { return "html" }

// Extension returns the file extension.
func (r *HTMLReporter) Extension() string { return "html" }

// Generate renders the report.
func (r *HTMLReporter) Generate(report *FlowReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(report, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the report to w.
func (r *HTMLReporter) Write(report *FlowReport, w io.Writer) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"barWidth": func(count int) int {
			if report.Summary.TotalAnomalies == 0 {
				return 0
			}
			return count * 100 / report.Summary.TotalAnomalies
		},
		"severityClass": func(s types.Severity) string {
			switch s {
			case types.SeverityCritical:
				return "critical"
			case types.SeverityHigh:
				return "high"
			case types.SeverityMedium:
				return "medium"
			case types.SeverityLow:
				return "low"
			}
			return "info"
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return err
	}

	data := struct {
		*FlowReport
		SeverityRows []severityRow
	}{FlowReport: report}
	for _, sev := range severityOrder {
		data.SeverityRows = append(data.SeverityRows, severityRow{
			Severity: sev,
			Count:    report.Summary.BySeverity[string(sev)],
		})
	}
	return tmpl.Execute(w, data)
}

type severityRow struct {
	Severity types.Severity
	Count    int
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Anomaly Report: {{.Flow.Name}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { border-bottom: 2px solid #16213e; padding-bottom: .5rem; }
  .meta { color: #555; margin-bottom: 1.5rem; }
  .cards { display: flex; gap: 1rem; margin-bottom: 2rem; }
  .card { border: 1px solid #ddd; border-radius: 8px; padding: 1rem 1.5rem; min-width: 10rem; }
  .card .value { font-size: 2rem; font-weight: 700; }
  .risk-Critical { color: #b91c1c; } .risk-High { color: #dc2626; }
  .risk-Medium { color: #d97706; } .risk-Low { color: #2563eb; } .risk-Minimal { color: #059669; }
  .bar-row { display: flex; align-items: center; gap: .5rem; margin: .25rem 0; }
  .bar-label { width: 5rem; }
  .bar-track { flex: 1; background: #f0f0f0; border-radius: 4px; height: 1.1rem; }
  .bar { height: 100%; border-radius: 4px; }
  .bar.critical { background: #b91c1c; } .bar.high { background: #dc2626; }
  .bar.medium { background: #d97706; } .bar.low { background: #2563eb; } .bar.info { background: #64748b; }
  table { border-collapse: collapse; width: 100%; margin-top: 1.5rem; }
  th, td { text-align: left; padding: .5rem .75rem; border-bottom: 1px solid #e5e5e5; }
  th { background: #16213e; color: #fff; }
  .sev { font-weight: 700; }
  .sev.critical { color: #b91c1c; } .sev.high { color: #dc2626; }
  .sev.medium { color: #d97706; } .sev.low { color: #2563eb; } .sev.info { color: #64748b; }
  .vuln { background: #fef2f2; }
  code { background: #f6f6f6; padding: .1rem .3rem; border-radius: 3px; }
</style>
</head>
<body>
<h1>Anomaly Report: {{.Flow.Name}}</h1>
<p class="meta">
  Target: {{.Flow.Target}} &middot; Requests: {{.Summary.TotalRequests}} &middot;
  Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
</p>

<div class="cards">
  <div class="card"><div>Risk score</div>
    <div class="value risk-{{.RiskCategory}}">{{printf "%.1f" .RiskScore}}</div>
    <div class="risk-{{.RiskCategory}}">{{.RiskCategory}}</div></div>
  <div class="card"><div>Test cases</div><div class="value">{{.Summary.TotalTestCases}}</div></div>
  <div class="card"><div>Anomalies</div><div class="value">{{.Summary.TotalAnomalies}}</div></div>
  <div class="card"><div>Potential vulnerabilities</div><div class="value">{{.Summary.PotentialVulnerabilities}}</div></div>
</div>

<h2>Severity distribution</h2>
{{range .SeverityRows}}
<div class="bar-row">
  <span class="bar-label">{{.Severity}}</span>
  <div class="bar-track"><div class="bar {{severityClass .Severity}}" style="width: {{barWidth .Count}}%"></div></div>
  <span>{{.Count}}</span>
</div>
{{end}}

<h2>Findings</h2>
{{if .Findings}}
<table>
  <tr><th>Severity</th><th>Type</th><th>Confidence</th><th>Risk</th><th>Mutation</th><th>Payload</th><th>Status</th><th>Description</th></tr>
  {{range .Findings}}
  <tr{{if .Anomaly.IsPotentialVulnerability}} class="vuln"{{end}}>
    <td class="sev {{severityClass .Anomaly.Severity}}">{{.Anomaly.Severity}}</td>
    <td>{{.Anomaly.Type}}</td>
    <td>{{printf "%.2f" .Anomaly.ConfidenceScore}}</td>
    <td>{{printf "%.1f" .Risk}}</td>
    <td>{{.Mutation}}</td>
    <td><code>{{.Payload}}</code></td>
    <td>{{.Anomaly.OriginalStatus}} &rarr; {{.Anomaly.ReplayedStatus}}</td>
    <td>{{.Anomaly.Description}}</td>
  </tr>
  {{end}}
</table>
{{else}}
<p>No anomalies detected.</p>
{{end}}
</body>
</html>
`
