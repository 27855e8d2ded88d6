package replay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

func newTestExecutor(t *testing.T, handler http.Handler) (*Executor, store.Store, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	cfg := types.DefaultConfig().Replay
	exec := NewExecutor(s, NewClient(cfg))
	exec.SetDelay(0)
	return exec, s, srv
}

func seedCase(t *testing.T, s store.Store, url, method string, tc types.TestCase) (int64, int64) {
	t.Helper()
	flowID, err := s.CreateFlow("flow", url, "")
	if err != nil {
		t.Fatal(err)
	}
	req := &types.Request{
		FlowID:         flowID,
		URL:            url,
		Method:         method,
		Headers:        map[string]string{"Authorization": "Bearer tok"},
		ResponseStatus: 200,
	}
	reqID, err := s.AddRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	tc.FlowID = flowID
	tc.RequestID = reqID
	tcID, err := s.AddTestCase(&tc)
	if err != nil {
		t.Fatal(err)
	}
	return flowID, tcID
}

func TestReplayTestCaseComposesOverrides(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))

	_, tcID := seedCase(t, s, srv.URL+"/users/42", "POST", types.TestCase{
		Type:        types.RuleIDIncrement,
		Category:    types.CategoryNumeric,
		ModifiedURL: srv.URL + "/users/43",
	})

	resp, err := exec.ReplayTestCase(context.Background(), tcID)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/users/43" {
		t.Errorf("path = %q, want modified /users/43", gotPath)
	}
	if gotMethod != "POST" {
		t.Errorf("method = %q, want baseline POST", gotMethod)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want baseline header", gotAuth)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", resp.StatusCode)
	}
	if string(resp.Body) != "denied" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestReplayHeaderOverrideReplacesBaseline(t *testing.T) {
	var gotAuth string
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	_, tcID := seedCase(t, s, srv.URL+"/me", "GET", types.TestCase{
		Type:            types.RuleNoToken,
		Category:        types.CategoryAuth,
		ModifiedHeaders: map[string]string{},
	})

	if _, err := exec.ReplayTestCase(context.Background(), tcID); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want removed", gotAuth)
	}
}

func TestReplayTransportFailureRecordsStatusZero(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	exec := NewExecutor(s, NewClient(types.DefaultConfig().Replay))
	exec.SetDelay(0)

	// Unroutable target: the replay must fail at the transport level.
	_, tcID := seedCase(t, s, "http://127.0.0.1:1/users", "GET", types.TestCase{
		Type:     types.RuleIDIncrement,
		Category: types.CategoryNumeric,
	})

	_, err := exec.ReplayTestCase(context.Background(), tcID)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var replayErr *types.ReplayError
	if !errors.As(err, &replayErr) {
		t.Fatalf("error type = %T, want *types.ReplayError", err)
	}

	resp, err := s.GetReplayedResponse(tcID)
	if err != nil {
		t.Fatalf("failed replay not recorded: %v", err)
	}
	if !resp.Failed() {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		t.Error("failure body empty, want error text")
	}
}

func TestReplayFlowSequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))

	flowID, err := s.CreateFlow("checkout", srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/step1", "/step2"} {
		reqID, err := s.AddRequest(&types.Request{
			FlowID:         flowID,
			URL:            srv.URL + path,
			Method:         "GET",
			ResponseStatus: 200,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.AddTestCase(&types.TestCase{
			FlowID:    flowID,
			RequestID: reqID,
			Type:      types.RuleNoToken,
			Category:  types.CategoryAuth,
		}); err != nil {
			t.Fatal(err)
		}
	}

	outcome, err := exec.ReplayFlow(context.Background(), flowID)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Attempted() != 2 || !outcome.Ok() {
		t.Fatalf("outcome = %+v, want 2 successes", outcome)
	}
	if len(order) != 2 || order[0] != "/step1" || order[1] != "/step2" {
		t.Errorf("replay order = %v, want [/step1 /step2]", order)
	}
}

func TestReplayFlowContinuesPastFailures(t *testing.T) {
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	flowID, err := s.CreateFlow("flow", srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	reqID, err := s.AddRequest(&types.Request{FlowID: flowID, URL: srv.URL, Method: "GET", ResponseStatus: 200})
	if err != nil {
		t.Fatal(err)
	}
	// First case targets an unroutable override; second is fine.
	if _, err := s.AddTestCase(&types.TestCase{
		FlowID: flowID, RequestID: reqID,
		Type: types.RuleIDIncrement, Category: types.CategoryNumeric,
		ModifiedURL: "http://127.0.0.1:1/",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTestCase(&types.TestCase{
		FlowID: flowID, RequestID: reqID,
		Type: types.RuleNoToken, Category: types.CategoryAuth,
	}); err != nil {
		t.Fatal(err)
	}

	outcome, err := exec.ReplayFlow(context.Background(), flowID)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Failed) != 1 || len(outcome.Succeeded) != 1 {
		t.Fatalf("outcome = %+v, want 1 failure and 1 success", outcome)
	}
}

func TestReplayTestCasesBoundedConcurrency(t *testing.T) {
	const maxConcurrent = 3
	var inFlight, peak int64
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt64(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
	}))

	flowID, err := s.CreateFlow("flow", srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	reqID, err := s.AddRequest(&types.Request{FlowID: flowID, URL: srv.URL, Method: "GET", ResponseStatus: 200})
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for i := 0; i < 20; i++ {
		id, err := s.AddTestCase(&types.TestCase{
			FlowID: flowID, RequestID: reqID,
			Type: types.RuleNoToken, Category: types.CategoryAuth,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	outcome, err := exec.ReplayTestCases(context.Background(), ids, maxConcurrent)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Attempted() != len(ids) || !outcome.Ok() {
		t.Fatalf("outcome = %+v, want %d successes", outcome, len(ids))
	}
	if p := atomic.LoadInt64(&peak); p > maxConcurrent {
		t.Errorf("peak concurrency = %d, exceeds limit %d", p, maxConcurrent)
	}
}

func TestReplayTestCasesCancelledCountsOnlyAttempted(t *testing.T) {
	exec, s, srv := newTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	flowID, err := s.CreateFlow("flow", srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	reqID, err := s.AddRequest(&types.Request{FlowID: flowID, URL: srv.URL, Method: "GET", ResponseStatus: 200})
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for i := 0; i < 10; i++ {
		id, err := s.AddTestCase(&types.TestCase{
			FlowID: flowID, RequestID: reqID,
			Type: types.RuleNoToken, Category: types.CategoryAuth,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, err := exec.ReplayTestCases(ctx, ids, 2)
	if err == nil {
		t.Fatal("expected context error")
	}
	if outcome.Attempted() > 0 {
		t.Errorf("attempted = %d after pre-cancelled context, want 0", outcome.Attempted())
	}
}
