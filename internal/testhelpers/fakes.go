package testhelpers

import (
	"context"
	"sync"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// StubAnalyzer returns a fixed response or error and records its calls.
type StubAnalyzer struct {
	mu       sync.Mutex
	Response *domain.AnalysisResponse
	Err      error
	// Errs, when non-empty, is consumed one per call before Err applies.
	Errs []error

	calls    int
	lastText string
	lastOpts domain.AnalysisOptions
}

// Analyze implements the orchestrator's analyzer.
func (a *StubAnalyzer) Analyze(_ context.Context, text string, opts domain.AnalysisOptions) (*domain.AnalysisResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.lastText = text
	a.lastOpts = opts
	if len(a.Errs) > 0 {
		err := a.Errs[0]
		a.Errs = a.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Response, nil
}

// Calls returns the number of Analyze calls.
func (a *StubAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// LastText returns the text of the latest call.
func (a *StubAnalyzer) LastText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastText
}

// LastOptions returns the options of the latest call.
func (a *StubAnalyzer) LastOptions() domain.AnalysisOptions {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastOpts
}

// RecordedError is one last-error write.
type RecordedError struct {
	Kind    string
	Message string
}

// Recorder is an in-memory diagnostics recorder.
type Recorder struct {
	mu        sync.Mutex
	responses map[string][]byte
	errors    map[string]RecordedError
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		responses: make(map[string][]byte),
		errors:    make(map[string]RecordedError),
	}
}

// RecordResponse stores the latest raw response for contentID.
func (r *Recorder) RecordResponse(_ context.Context, contentID string, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[contentID] = append([]byte(nil), raw...)
	return nil
}

// RecordError stores the last error for contentID.
func (r *Recorder) RecordError(_ context.Context, contentID, kind, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[contentID] = RecordedError{Kind: kind, Message: message}
	return nil
}

// ClearError drops the last error for contentID.
func (r *Recorder) ClearError(_ context.Context, contentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.errors, contentID)
	return nil
}

// Response returns the stored raw response.
func (r *Recorder) Response(contentID string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.responses[contentID]
	return raw, ok
}

// LastError returns the stored last error.
func (r *Recorder) LastError(contentID string) (RecordedError, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.errors[contentID]
	return e, ok
}
