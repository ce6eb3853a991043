package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// mockStore is an in-memory WorkflowStore and RunEventLog.
type mockStore struct {
	mu        sync.Mutex
	workflows map[string]*store.Workflow
	orgs      map[string]*store.Organization
	runs      map[string]*schema.WorkflowRun
	updates   map[string][]store.RunUpdate
	stats     map[string][]store.WorkflowStatsUpdate
	events    []*store.RunEvent

	createRunErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		workflows: map[string]*store.Workflow{},
		orgs:      map[string]*store.Organization{},
		runs:      map[string]*schema.WorkflowRun{},
		updates:   map[string][]store.RunUpdate{},
		stats:     map[string][]store.WorkflowStatsUpdate{},
	}
}

func (m *mockStore) addWorkflow(wf *store.Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
}

func (m *mockStore) GetWorkflow(_ context.Context, id string) (*store.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	return wf, nil
}

func (m *mockStore) GetOrganization(_ context.Context, id string) (*store.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "organization %q not found", id)
	}
	return org, nil
}

func (m *mockStore) CreateRun(_ context.Context, run *schema.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRunErr != nil {
		return m.createRunErr
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockStore) UpdateRun(_ context.Context, id string, u store.RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", id)
	}
	m.updates[id] = append(m.updates[id], u)
	if u.Status != nil {
		run.Status = *u.Status
	}
	if u.Output != nil {
		run.Output = string(u.Output)
	}
	if u.Error != nil {
		run.Error = *u.Error
	}
	if u.ErrorStep != nil {
		run.ErrorStep = *u.ErrorStep
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		run.CompletedAt = &t
	}
	if u.DurationMs != nil {
		d := *u.DurationMs
		run.DurationMs = &d
	}
	return nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (*schema.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", id)
	}
	cp := *run
	return &cp, nil
}

func (m *mockStore) UpdateWorkflowStats(_ context.Context, id string, u store.WorkflowStatsUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	m.stats[id] = append(m.stats[id], u)
	wf.RunCount++
	wf.LastRunStatus = u.LastRunStatus
	wf.LastRunError = u.LastRunError
	t := u.LastRun
	wf.LastRun = &t
	return nil
}

func (m *mockStore) AppendRunEvent(_ context.Context, ev *store.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var seq int64
	for _, e := range m.events {
		if e.RunID == ev.RunID {
			seq = e.Sequence
		}
	}
	ev.Sequence = seq + 1
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *mockStore) ListRunEvents(_ context.Context, runID string) ([]*store.RunEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RunEvent
	for _, e := range m.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// call is one recorded dispatch.
type call struct {
	Path   string
	Inputs map[string]any
}

// stubDispatcher answers from a table of handlers and records every call.
type stubDispatcher struct {
	mu       sync.Mutex
	handlers map[string]func(inputs map[string]any) (any, error)
	calls    []call
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{handlers: map[string]func(map[string]any) (any, error){}}
}

func (d *stubDispatcher) on(path string, fn func(inputs map[string]any) (any, error)) *stubDispatcher {
	d.handlers[path] = fn
	return d
}

func (d *stubDispatcher) Dispatch(_ context.Context, path string, inputs map[string]any) (any, error) {
	d.mu.Lock()
	d.calls = append(d.calls, call{Path: path, Inputs: inputs})
	fn, ok := d.handlers[path]
	d.mu.Unlock()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeModuleNotFound, "module %s not found", path)
	}
	return fn(inputs)
}

func (d *stubDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// recordingDispatcher wraps a real dispatcher and records inputs.
type recordingDispatcher struct {
	inner Dispatcher
	mu    sync.Mutex
	calls []call
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, path string, inputs map[string]any) (any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{Path: path, Inputs: inputs})
	r.mu.Unlock()
	return r.inner.Dispatch(ctx, path, inputs)
}

type staticCredentials map[string]any

func (s staticCredentials) LoadUserCredentials(context.Context, string) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type rejectAll struct{}

func (rejectAll) ValidateConfig(*schema.WorkflowConfig) error {
	return schema.NewError(schema.ErrCodeValidation, "steps[0].id: duplicate step id").WithStep("dup")
}

func echo(inputs map[string]any) (any, error) { return inputs, nil }

func fail(msg string) func(map[string]any) (any, error) {
	return func(map[string]any) (any, error) { return nil, errors.New(msg) }
}

func constant(v any) func(map[string]any) (any, error) {
	return func(map[string]any) (any, error) { return v, nil }
}

func actionSteps(n int, module string) []schema.Step {
	steps := make([]schema.Step, n)
	for i := range steps {
		steps[i] = schema.NewActionStep(fmt.Sprintf("s%d", i+1), module, map[string]any{"i": i + 1}, "")
	}
	return steps
}
