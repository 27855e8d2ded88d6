// Package replay executes test cases against the live target and
// persists the replayed responses.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// Executor replays test cases. Flow replay is strictly sequential in
// request order; id-list replay runs with bounded concurrency. Every
// attempt is durably recorded: transport failures persist a synthetic
// status-0 response with the error text as body before being reported.
type Executor struct {
	store    store.Store
	client   *Client
	limiter  *RateLimiter
	settings *store.Settings

	mu    sync.Mutex
	delay time.Duration // <0 means "use the configured value"
}

// NewExecutor creates a replay executor.
func NewExecutor(s store.Store, client *Client) *Executor {
	return &Executor{
		store:    s,
		client:   client,
		limiter:  NewRateLimiter(0),
		settings: store.NewSettings(s),
		delay:    -1,
	}
}

// SetRateLimit caps replay throughput in requests per second. Takes
// effect for subsequent replays only, never in-flight ones.
func (e *Executor) SetRateLimit(requestsPerSecond float64) {
	e.limiter.SetRate(requestsPerSecond)
}

// SetTimeout updates the per-request timeout for subsequent replays.
func (e *Executor) SetTimeout(timeout time.Duration) {
	e.client.SetTimeout(timeout)
}

// SetDelay overrides the configured delay between sequential replays.
func (e *Executor) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

func (e *Executor) requestDelay() time.Duration {
	e.mu.Lock()
	d := e.delay
	e.mu.Unlock()
	if d >= 0 {
		return d
	}
	return e.settings.RequestDelay()
}

// ReplayFlow replays every test case of every request in the flow,
// strictly in original request sequence order, with a fixed delay after
// each replay. Per-case failures are collected, never aborting the
// batch. The sequential path exists because sequence test cases assume
// a stable ordering; it is never parallelized.
func (e *Executor) ReplayFlow(ctx context.Context, flowID int64) (*types.BatchOutcome, error) {
	requests, err := e.store.GetRequests(flowID)
	if err != nil {
		return nil, &types.ReplayError{Op: "get flow requests", Err: err}
	}

	delay := e.requestDelay()
	outcome := &types.BatchOutcome{}
	for _, req := range requests {
		cases, err := e.store.GetTestCases(store.TestCaseFilter{RequestID: req.ID})
		if err != nil {
			return outcome, &types.ReplayError{Op: "get test cases", Err: err}
		}
		for i := range cases {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			if err := e.replayOne(ctx, &cases[i], &req); err != nil {
				outcome.Failed = append(outcome.Failed, types.BatchItem{ID: cases[i].ID, Error: err.Error()})
			} else {
				outcome.Succeeded = append(outcome.Succeeded, cases[i].ID)
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return outcome, ctx.Err()
				case <-time.After(delay):
				}
			}
		}
	}
	return outcome, nil
}

// ReplayTestCases replays an explicit id list with bounded concurrency.
// maxConcurrent <= 0 uses the configured max_concurrent_requests. No
// ordering is guaranteed between concurrent replays. Cancellation stops
// dispatching new work; the outcome counts only attempted items.
func (e *Executor) ReplayTestCases(ctx context.Context, ids []int64, maxConcurrent int) (*types.BatchOutcome, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = e.settings.MaxConcurrentRequests()
	}

	sem := make(chan struct{}, maxConcurrent)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outcome = &types.BatchOutcome{}
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				defer func() { <-sem }()

				err := e.replayByID(ctx, id)
				mu.Lock()
				if err != nil {
					outcome.Failed = append(outcome.Failed, types.BatchItem{ID: id, Error: err.Error()})
				} else {
					outcome.Succeeded = append(outcome.Succeeded, id)
				}
				mu.Unlock()
			}(id)
		}
	}

	wg.Wait()
	return outcome, ctx.Err()
}

// ReplayTestCase replays a single test case by id.
func (e *Executor) ReplayTestCase(ctx context.Context, id int64) (*types.ReplayedResponse, error) {
	tc, err := e.store.GetTestCase(id)
	if err != nil {
		return nil, &types.ReplayError{Op: "get test case", TestCaseID: id, Err: err}
	}
	req, err := e.store.GetRequest(tc.RequestID)
	if err != nil {
		return nil, &types.ReplayError{Op: "get original request", TestCaseID: id, Err: err}
	}
	if err := e.replayOne(ctx, tc, req); err != nil {
		return nil, err
	}
	return e.store.GetReplayedResponse(id)
}

func (e *Executor) replayByID(ctx context.Context, id int64) error {
	tc, err := e.store.GetTestCase(id)
	if err != nil {
		return &types.ReplayError{Op: "get test case", TestCaseID: id, Err: err}
	}
	req, err := e.store.GetRequest(tc.RequestID)
	if err != nil {
		return &types.ReplayError{Op: "get original request", TestCaseID: id, Err: err}
	}
	return e.replayOne(ctx, tc, req)
}

// replayOne dispatches a single test case. The method always comes from
// the baseline; URL, headers and body are each taken independently from
// the test case's override when present, else from the baseline, with no
// further normalization.
func (e *Executor) replayOne(ctx context.Context, tc *types.TestCase, req *types.Request) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return &types.ReplayError{Op: "rate limit wait", TestCaseID: tc.ID, Err: err}
	}

	url := req.URL
	if tc.ModifiedURL != "" {
		url = tc.ModifiedURL
	}
	headers := req.Headers
	if tc.HasModifiedHeaders() {
		headers = tc.ModifiedHeaders
	}
	body := req.Body
	if tc.ModifiedBody != nil {
		body = tc.ModifiedBody
	}

	resp, err := e.client.Do(ctx, req.Method, url, headers, body)
	if err != nil {
		failed := &types.ReplayedResponse{
			TestCaseID: tc.ID,
			StatusCode: 0,
			Body:       []byte(err.Error()),
			Timestamp:  time.Now().UTC(),
		}
		if _, storeErr := e.store.AddReplayedResponse(failed); storeErr != nil {
			return &types.ReplayError{Op: "record failed replay", TestCaseID: tc.ID, Err: storeErr}
		}
		return &types.ReplayError{Op: "execute request", TestCaseID: tc.ID, Err: err}
	}

	resp.TestCaseID = tc.ID
	if _, err := e.store.AddReplayedResponse(resp); err != nil {
		return &types.ReplayError{Op: "record replay", TestCaseID: tc.ID, Err: err}
	}
	return nil
}
