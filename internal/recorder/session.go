// Package recorder captures baseline flows: manual recording sessions,
// HAR archive imports and OpenAPI-driven baseline capture.
package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

var (
	// ErrAlreadyRecording is returned when a session is started while
	// another is active. Starting is never a silent restart.
	ErrAlreadyRecording = errors.New("a recording session is already active")

	// ErrNotRecording is returned by Record and Stop when no session is active.
	ErrNotRecording = errors.New("no recording session is active")
)

// Session is one active recording, bound to the flow it fills.
type Session struct {
	FlowID    int64
	FlowName  string
	StartedAt time.Time
}

// Recorder owns the single recording slot. The state machine is
// Idle -> Recording -> Idle; all transitions are serialized by the mutex.
type Recorder struct {
	mu      sync.Mutex
	store   store.Store
	session *Session
}

// NewRecorder creates a recorder backed by the store.
func NewRecorder(s store.Store) *Recorder {
	return &Recorder{store: s}
}

// Start creates a flow and opens a recording session bound to it.
func (r *Recorder) Start(name, target, description string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return nil, &types.RecordingError{Op: "start", Err: ErrAlreadyRecording}
	}
	flowID, err := r.store.CreateFlow(name, target, description)
	if err != nil {
		return nil, &types.RecordingError{Op: "create flow", Err: err}
	}
	r.session = &Session{FlowID: flowID, FlowName: name, StartedAt: time.Now().UTC()}
	cp := *r.session
	return &cp, nil
}

// Active returns a copy of the current session, or nil when idle.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	cp := *r.session
	return &cp
}

// Record appends a request to the active session's flow.
func (r *Recorder) Record(req *types.Request) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return 0, &types.RecordingError{Op: "record", Err: ErrNotRecording}
	}
	req.FlowID = r.session.FlowID
	id, err := r.store.AddRequest(req)
	if err != nil {
		return 0, &types.RecordingError{Op: "record request", Err: err}
	}
	return id, nil
}

// Stop closes the active session and returns the recorded flow.
func (r *Recorder) Stop() (*types.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, &types.RecordingError{Op: "stop", Err: ErrNotRecording}
	}
	flow, err := r.store.GetFlow(r.session.FlowID)
	if err != nil {
		return nil, &types.RecordingError{Op: "load recorded flow", Err: err}
	}
	r.session = nil
	return flow, nil
}
