package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// SQLiteStore is the durable Store implementation. Headers are stored as
// JSON text columns, bodies as blobs, ids as autoincrement integers.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS flows (
	flow_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	request_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS requests (
	request_id INTEGER PRIMARY KEY AUTOINCREMENT,
	flow_id INTEGER NOT NULL REFERENCES flows(flow_id),
	sequence_number INTEGER NOT NULL,
	url TEXT NOT NULL,
	method TEXT NOT NULL,
	headers TEXT NOT NULL DEFAULT '{}',
	body BLOB,
	response_status INTEGER NOT NULL DEFAULT 0,
	response_headers TEXT NOT NULL DEFAULT '{}',
	response_body BLOB,
	response_content_length INTEGER NOT NULL DEFAULT 0,
	timestamp TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS test_cases (
	test_case_id INTEGER PRIMARY KEY AUTOINCREMENT,
	flow_id INTEGER NOT NULL REFERENCES flows(flow_id),
	request_id INTEGER NOT NULL REFERENCES requests(request_id),
	type TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	payload_value TEXT NOT NULL DEFAULT '',
	modified_url TEXT,
	modified_headers TEXT,
	modified_body BLOB,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS replayed_responses (
	response_id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_case_id INTEGER NOT NULL REFERENCES test_cases(test_case_id),
	status_code INTEGER NOT NULL,
	headers TEXT NOT NULL DEFAULT '{}',
	body BLOB,
	content_length INTEGER NOT NULL DEFAULT 0,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	timestamp TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS anomalies (
	anomaly_id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_case_id INTEGER NOT NULL REFERENCES test_cases(test_case_id),
	response_id INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	confidence_score REAL NOT NULL DEFAULT 0,
	is_potential_vulnerability INTEGER NOT NULL DEFAULT 0,
	vulnerability_type TEXT NOT NULL DEFAULT '',
	original_status INTEGER NOT NULL DEFAULT 0,
	replayed_status INTEGER NOT NULL DEFAULT 0,
	original_content_length INTEGER NOT NULL DEFAULT 0,
	replayed_content_length INTEGER NOT NULL DEFAULT 0,
	detected_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS payload_rules (
	rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
	category TEXT NOT NULL,
	type TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '{}',
	enabled INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_flow ON requests(flow_id, sequence_number);
CREATE INDEX IF NOT EXISTS idx_test_cases_flow ON test_cases(flow_id);
CREATE INDEX IF NOT EXISTS idx_test_cases_request ON test_cases(request_id);
CREATE INDEX IF NOT EXISTS idx_responses_test_case ON replayed_responses(test_case_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_test_case ON anomalies(test_case_id);
`

// OpenSQLite opens (and if needed initializes) a SQLite-backed store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, &types.DatabaseError{Op: "open " + path, Err: err}
	}
	// SQLite serializes writes; a single connection avoids lock churn
	// under the bounded-concurrent replay path.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &types.DatabaseError{Op: "init schema", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func dbErr(op string, err error) error {
	return &types.DatabaseError{Op: op, Err: err}
}

func marshalHeaders(h map[string]string) string {
	if h == nil {
		return "{}"
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalHeaders(s string) map[string]string {
	if s == "" {
		return map[string]string{}
	}
	var h map[string]string
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return map[string]string{}
	}
	return h
}

// CreateFlow creates a new flow and returns its id.
func (s *SQLiteStore) CreateFlow(name, target, description string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO flows (name, target, description, created_at) VALUES (?, ?, ?, ?)`,
		name, target, description, time.Now().UTC(),
	)
	if err != nil {
		return 0, dbErr("create flow", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, dbErr("create flow", err)
	}
	return id, nil
}

// GetFlow returns the flow with the given id.
func (s *SQLiteStore) GetFlow(id int64) (*types.Flow, error) {
	var f types.Flow
	err := s.db.QueryRow(
		`SELECT flow_id, name, target, description, request_count, created_at FROM flows WHERE flow_id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Target, &f.Description, &f.RequestCount, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get flow %d", id), err)
	}
	return &f, nil
}

// ListFlows returns all flows, newest first.
func (s *SQLiteStore) ListFlows() ([]types.Flow, error) {
	rows, err := s.db.Query(
		`SELECT flow_id, name, target, description, request_count, created_at FROM flows ORDER BY flow_id DESC`)
	if err != nil {
		return nil, dbErr("list flows", err)
	}
	defer rows.Close()

	var flows []types.Flow
	for rows.Next() {
		var f types.Flow
		if err := rows.Scan(&f.ID, &f.Name, &f.Target, &f.Description, &f.RequestCount, &f.CreatedAt); err != nil {
			return nil, dbErr("list flows", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// AddRequest appends a request to its flow inside one transaction: the
// request row, its sequence number and the flow's request count stay
// consistent even with concurrent writers.
func (s *SQLiteStore) AddRequest(req *types.Request) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, dbErr("add request", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT request_count FROM flows WHERE flow_id = ?`, req.FlowID).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, dbErr(fmt.Sprintf("add request to flow %d", req.FlowID), err)
	}

	seq := count + 1
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	res, err := tx.Exec(
		`INSERT INTO requests (flow_id, sequence_number, url, method, headers, body,
			response_status, response_headers, response_body, response_content_length, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.FlowID, seq, req.URL, req.Method, marshalHeaders(req.Headers), req.Body,
		req.ResponseStatus, marshalHeaders(req.ResponseHeaders), req.ResponseBody,
		req.ResponseContentLength, ts,
	)
	if err != nil {
		return 0, dbErr(fmt.Sprintf("add request to flow %d", req.FlowID), err)
	}
	if _, err := tx.Exec(`UPDATE flows SET request_count = ? WHERE flow_id = ?`, seq, req.FlowID); err != nil {
		return 0, dbErr(fmt.Sprintf("add request to flow %d", req.FlowID), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, dbErr("add request", err)
	}

	id, _ := res.LastInsertId()
	req.ID = id
	req.SequenceNumber = seq
	req.Timestamp = ts
	return id, nil
}

func scanRequest(scan func(...any) error) (*types.Request, error) {
	var (
		r        types.Request
		hdrs     string
		respHdrs string
	)
	err := scan(&r.ID, &r.FlowID, &r.SequenceNumber, &r.URL, &r.Method, &hdrs, &r.Body,
		&r.ResponseStatus, &respHdrs, &r.ResponseBody, &r.ResponseContentLength, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	r.Headers = unmarshalHeaders(hdrs)
	r.ResponseHeaders = unmarshalHeaders(respHdrs)
	return &r, nil
}

const requestCols = `request_id, flow_id, sequence_number, url, method, headers, body,
	response_status, response_headers, response_body, response_content_length, timestamp`

// GetRequest returns the request with the given id.
func (s *SQLiteStore) GetRequest(id int64) (*types.Request, error) {
	row := s.db.QueryRow(`SELECT `+requestCols+` FROM requests WHERE request_id = ?`, id)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get request %d", id), err)
	}
	return req, nil
}

// GetRequests returns the flow's requests in sequence order.
func (s *SQLiteStore) GetRequests(flowID int64) ([]types.Request, error) {
	rows, err := s.db.Query(
		`SELECT `+requestCols+` FROM requests WHERE flow_id = ? ORDER BY sequence_number`, flowID)
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get requests for flow %d", flowID), err)
	}
	defer rows.Close()

	var reqs []types.Request
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, dbErr(fmt.Sprintf("get requests for flow %d", flowID), err)
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

// AddTestCase persists a generated test case and returns its id.
func (s *SQLiteStore) AddTestCase(tc *types.TestCase) (int64, error) {
	ts := tc.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var modifiedURL any
	if tc.ModifiedURL != "" {
		modifiedURL = tc.ModifiedURL
	}
	var modifiedHeaders any
	if tc.ModifiedHeaders != nil {
		modifiedHeaders = marshalHeaders(tc.ModifiedHeaders)
	}
	res, err := s.db.Exec(
		`INSERT INTO test_cases (flow_id, request_id, type, category, description,
			payload_value, modified_url, modified_headers, modified_body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.FlowID, tc.RequestID, tc.Type, tc.Category, tc.Description,
		tc.PayloadValue, modifiedURL, modifiedHeaders, tc.ModifiedBody, ts,
	)
	if err != nil {
		return 0, dbErr("add test case", err)
	}
	id, _ := res.LastInsertId()
	tc.ID = id
	tc.CreatedAt = ts
	return id, nil
}

func scanTestCase(scan func(...any) error) (*types.TestCase, error) {
	var (
		tc   types.TestCase
		url  sql.NullString
		hdrs sql.NullString
	)
	err := scan(&tc.ID, &tc.FlowID, &tc.RequestID, &tc.Type, &tc.Category,
		&tc.Description, &tc.PayloadValue, &url, &hdrs, &tc.ModifiedBody, &tc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if url.Valid {
		tc.ModifiedURL = url.String
	}
	if hdrs.Valid {
		tc.ModifiedHeaders = unmarshalHeaders(hdrs.String)
	}
	return &tc, nil
}

const testCaseCols = `test_case_id, flow_id, request_id, type, category, description,
	payload_value, modified_url, modified_headers, modified_body, created_at`

// GetTestCase returns the test case with the given id.
func (s *SQLiteStore) GetTestCase(id int64) (*types.TestCase, error) {
	row := s.db.QueryRow(`SELECT `+testCaseCols+` FROM test_cases WHERE test_case_id = ?`, id)
	tc, err := scanTestCase(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get test case %d", id), err)
	}
	return tc, nil
}

// GetTestCases returns test cases matching the filter, oldest first.
func (s *SQLiteStore) GetTestCases(filter TestCaseFilter) ([]types.TestCase, error) {
	query := `SELECT ` + testCaseCols + ` FROM test_cases`
	var (
		conds []string
		args  []any
	)
	if filter.FlowID != 0 {
		conds = append(conds, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.RequestID != 0 {
		conds = append(conds, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY test_case_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, dbErr("get test cases", err)
	}
	defer rows.Close()

	var cases []types.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows.Scan)
		if err != nil {
			return nil, dbErr("get test cases", err)
		}
		cases = append(cases, *tc)
	}
	return cases, rows.Err()
}

// AddReplayedResponse records the outcome of executing a test case.
// History is kept; GetReplayedResponse returns only the latest row.
func (s *SQLiteStore) AddReplayedResponse(rr *types.ReplayedResponse) (int64, error) {
	ts := rr.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO replayed_responses (test_case_id, status_code, headers, body,
			content_length, response_time_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rr.TestCaseID, rr.StatusCode, marshalHeaders(rr.Headers), rr.Body,
		rr.ContentLength, rr.ResponseTimeMs, ts,
	)
	if err != nil {
		return 0, dbErr(fmt.Sprintf("add replayed response for test case %d", rr.TestCaseID), err)
	}
	id, _ := res.LastInsertId()
	rr.ID = id
	rr.Timestamp = ts
	return id, nil
}

// GetReplayedResponse returns the latest replayed response for the test
// case. A re-replayed test case logically supersedes its prior response.
func (s *SQLiteStore) GetReplayedResponse(testCaseID int64) (*types.ReplayedResponse, error) {
	var (
		rr   types.ReplayedResponse
		hdrs string
	)
	err := s.db.QueryRow(
		`SELECT response_id, test_case_id, status_code, headers, body, content_length,
			response_time_ms, timestamp
		 FROM replayed_responses WHERE test_case_id = ? ORDER BY response_id DESC LIMIT 1`,
		testCaseID,
	).Scan(&rr.ID, &rr.TestCaseID, &rr.StatusCode, &hdrs, &rr.Body,
		&rr.ContentLength, &rr.ResponseTimeMs, &rr.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get replayed response for test case %d", testCaseID), err)
	}
	rr.Headers = unmarshalHeaders(hdrs)
	return &rr, nil
}

// AddAnomaly persists a classified anomaly and returns its id.
func (s *SQLiteStore) AddAnomaly(a *types.Anomaly) (int64, error) {
	ts := a.DetectedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO anomalies (test_case_id, response_id, type, severity, description,
			confidence_score, is_potential_vulnerability, vulnerability_type,
			original_status, replayed_status, original_content_length, replayed_content_length, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TestCaseID, a.ResponseID, a.Type, string(a.Severity), a.Description,
		a.ConfidenceScore, a.IsPotentialVulnerability, a.VulnerabilityType,
		a.OriginalStatus, a.ReplayedStatus, a.OriginalContentLength, a.ReplayedContentLength, ts,
	)
	if err != nil {
		return 0, dbErr(fmt.Sprintf("add anomaly for test case %d", a.TestCaseID), err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.DetectedAt = ts
	return id, nil
}

// GetAnomalies returns anomalies matching the filter, oldest first. A
// FlowID filter joins through test_cases.
func (s *SQLiteStore) GetAnomalies(filter AnomalyFilter) ([]types.Anomaly, error) {
	query := `SELECT a.anomaly_id, a.test_case_id, a.response_id, a.type, a.severity,
		a.description, a.confidence_score, a.is_potential_vulnerability, a.vulnerability_type,
		a.original_status, a.replayed_status, a.original_content_length, a.replayed_content_length,
		a.detected_at
	 FROM anomalies a`
	var args []any
	switch {
	case filter.TestCaseID != 0:
		query += ` WHERE a.test_case_id = ?`
		args = append(args, filter.TestCaseID)
	case filter.FlowID != 0:
		query += ` JOIN test_cases tc ON tc.test_case_id = a.test_case_id WHERE tc.flow_id = ?`
		args = append(args, filter.FlowID)
	}
	query += ` ORDER BY a.anomaly_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, dbErr("get anomalies", err)
	}
	defer rows.Close()

	var anomalies []types.Anomaly
	for rows.Next() {
		var (
			a   types.Anomaly
			sev string
		)
		if err := rows.Scan(&a.ID, &a.TestCaseID, &a.ResponseID, &a.Type, &sev,
			&a.Description, &a.ConfidenceScore, &a.IsPotentialVulnerability, &a.VulnerabilityType,
			&a.OriginalStatus, &a.ReplayedStatus, &a.OriginalContentLength, &a.ReplayedContentLength,
			&a.DetectedAt); err != nil {
			return nil, dbErr("get anomalies", err)
		}
		a.Severity = types.Severity(sev)
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// GetPayloadRules returns mutation rules, optionally filtered by category
// and enabled state.
func (s *SQLiteStore) GetPayloadRules(category string, enabledOnly bool) ([]types.MutationRule, error) {
	query := `SELECT rule_id, category, type, params, enabled, description FROM payload_rules`
	var (
		conds []string
		args  []any
	)
	if category != "" {
		conds = append(conds, "category = ?")
		args = append(args, category)
	}
	if enabledOnly {
		conds = append(conds, "enabled = 1")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY rule_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, dbErr("get payload rules", err)
	}
	defer rows.Close()

	var rules []types.MutationRule
	for rows.Next() {
		var (
			r      types.MutationRule
			params string
		)
		if err := rows.Scan(&r.ID, &r.Category, &r.Type, &params, &r.Enabled, &r.Description); err != nil {
			return nil, dbErr("get payload rules", err)
		}
		p, err := types.DecodeRuleParams(r.Type, []byte(params))
		if err != nil {
			return nil, dbErr(fmt.Sprintf("get payload rules (rule %d)", r.ID), err)
		}
		r.Params = p
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AddPayloadRule persists a mutation rule and returns its id.
func (s *SQLiteStore) AddPayloadRule(rule *types.MutationRule) (int64, error) {
	params, err := types.EncodeRuleParams(rule.Params)
	if err != nil {
		return 0, dbErr("add payload rule", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO payload_rules (category, type, params, enabled, description) VALUES (?, ?, ?, ?, ?)`,
		rule.Category, rule.Type, string(params), rule.Enabled, rule.Description,
	)
	if err != nil {
		return 0, dbErr("add payload rule", err)
	}
	id, _ := res.LastInsertId()
	rule.ID = id
	return id, nil
}

// SetRuleEnabled toggles a rule's enabled flag.
func (s *SQLiteStore) SetRuleEnabled(id int64, enabled bool) error {
	res, err := s.db.Exec(`UPDATE payload_rules SET enabled = ? WHERE rule_id = ?`, enabled, id)
	if err != nil {
		return dbErr(fmt.Sprintf("set rule %d enabled", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayloadRules removes every rule in a category.
func (s *SQLiteStore) DeletePayloadRules(category string) error {
	if _, err := s.db.Exec(`DELETE FROM payload_rules WHERE category = ?`, category); err != nil {
		return dbErr("delete payload rules for "+category, err)
	}
	return nil
}

// GetConfig returns the stored value for key, or "" when unset.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", dbErr("get config "+key, err)
	}
	return value, nil
}

// SetConfig stores a key/value pair, replacing any existing value.
func (s *SQLiteStore) SetConfig(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return dbErr("set config "+key, err)
	}
	return nil
}
