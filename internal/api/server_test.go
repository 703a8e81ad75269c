package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/evaluators"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
)

const testApplicationBody = `{
	"applicationId": "app-001",
	"customerName": "Asha Rao",
	"mobile": "9876543210",
	"pan": "ABCDE1234F",
	"aadhaar": "123456789012",
	"loanAmount": 500000,
	"tenure": 36,
	"income": 75000
}`

type fakeRunner struct {
	events []pipeline.Event
	result pipeline.Result
	got    pipeline.Application
}

func (f *fakeRunner) Run(_ context.Context, app pipeline.Application) pipeline.Result {
	f.got = app
	return f.result
}

func (f *fakeRunner) RunStreaming(_ context.Context, app pipeline.Application) <-chan pipeline.Event {
	f.got = app
	ch := make(chan pipeline.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

type sseEvent struct {
	kind string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, ev.kind, "block without event line: %q", block)
		out = append(out, ev)
	}
	return out
}

func sanctionedResult() pipeline.Result {
	return pipeline.Result{
		ApplicationID: "app-001",
		Status:        pipeline.StatusSanctioned,
		FinalDecision: pipeline.DecisionApprove,
		Verdicts: []pipeline.Verdict{
			{EvaluatorID: "AgentAlpha", DisplayName: "Sales Validator", Score: 100, Decision: pipeline.DecisionApprove, Confidence: 95, Explanation: "ok"},
			{EvaluatorID: "AgentZeta", DisplayName: "Sanction Authority", Score: 92, Decision: pipeline.DecisionApprove, Confidence: 92, Explanation: "approved"},
		},
		Document: &pipeline.DocumentRef{URL: "/documents/app-001.txt"},
	}
}

func TestEvaluateStream(t *testing.T) {
	res := sanctionedResult()
	runner := &fakeRunner{events: []pipeline.Event{
		{Kind: pipeline.EventStart, EvaluatorID: "AgentAlpha", DisplayName: "Sales Validator"},
		{Kind: pipeline.EventVerdict, EvaluatorID: "AgentAlpha", Verdict: &res.Verdicts[0]},
		{Kind: pipeline.EventStart, EvaluatorID: "AgentZeta", DisplayName: "Sanction Authority"},
		{Kind: pipeline.EventVerdict, EvaluatorID: "AgentZeta", Verdict: &res.Verdicts[1]},
		{Kind: pipeline.EventComplete, EvaluatorID: "AgentZeta", Result: &res},
	}}
	srv := NewServer(runner, logger.NewTestLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/applications/evaluate/stream", strings.NewReader(testApplicationBody))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "app-001", runner.got.ID)

	events := parseSSE(t, rec.Body.String())
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.kind
	}
	assert.Equal(t, []string{"agent_start", "agent_complete", "agent_start", "agent_complete", "complete"}, kinds)

	var start startPayload
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &start))
	assert.Equal(t, startPayload{Agent: "AgentAlpha", Name: "Sales Validator"}, start)

	var verdict completePayload
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &verdict))
	assert.Equal(t, pipeline.DecisionApprove, verdict.Decision)
	assert.Equal(t, 100, verdict.Score)

	var final resultPayload
	require.NoError(t, json.Unmarshal([]byte(events[4].data), &final))
	assert.Equal(t, pipeline.StatusSanctioned, final.Status)
	assert.Equal(t, "/documents/app-001.txt", final.DocumentURL)
	assert.Equal(t, 92, final.Scores["AgentZeta"])
	assert.Equal(t, "APPROVE", final.Decisions["AgentAlpha"])
	assert.Contains(t, final.Summary, "## Application Assessment Summary")
}

func TestEvaluateStream_MissingCompleteEmitsError(t *testing.T) {
	runner := &fakeRunner{events: []pipeline.Event{
		{Kind: pipeline.EventStart, EvaluatorID: "AgentAlpha"},
	}}
	srv := NewServer(runner, logger.NewTestLogger(t))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications/evaluate/stream", strings.NewReader(testApplicationBody)))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].kind)
	assert.Contains(t, events[1].data, "without a result")
}

func TestEvaluateStream_BadBody(t *testing.T) {
	srv := NewServer(&fakeRunner{}, logger.NewTestLogger(t))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications/evaluate/stream", strings.NewReader(`{"loanAmount":"lots"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid application body")
}

func TestEvaluateStream_RealOrchestrator(t *testing.T) {
	orch := pipeline.NewOrchestrator(evaluators.Default(pipeline.NewSeededRandom(42)), nil)
	srv := NewServer(orch, logger.NewTestLogger(t))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications/evaluate/stream", strings.NewReader(testApplicationBody)))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)

	starts, completes := 0, 0
	for _, e := range events[:len(events)-1] {
		switch e.kind {
		case "agent_start":
			starts++
		case "agent_complete":
			completes++
		default:
			t.Fatalf("unexpected event %q before complete", e.kind)
		}
	}
	assert.Equal(t, starts, completes)
	assert.Equal(t, "complete", events[len(events)-1].kind)
}

func TestEvaluate(t *testing.T) {
	runner := &fakeRunner{result: sanctionedResult()}
	srv := NewServer(runner, logger.NewTestLogger(t))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications/evaluate", strings.NewReader(testApplicationBody)))

	require.Equal(t, http.StatusOK, rec.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, pipeline.StatusSanctioned, res.Status)
	assert.Equal(t, int64(500000), runner.got.LoanAmount)
}

type fakeStatusReader struct {
	status    *models.ApplicationStatus
	fromCache bool
	err       error
}

func (f *fakeStatusReader) GetStatus(context.Context, string) (*models.ApplicationStatus, bool, error) {
	return f.status, f.fromCache, f.err
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		reader     *fakeStatusReader
		wantCode   int
		wantCache  string
		wantInBody string
	}{
		{
			name:       "cache hit",
			reader:     &fakeStatusReader{status: &models.ApplicationStatus{ApplicationID: "app-001", Status: "SANCTIONED"}, fromCache: true},
			wantCode:   http.StatusOK,
			wantCache:  "HIT",
			wantInBody: `"status":"SANCTIONED"`,
		},
		{
			name:       "not found",
			reader:     &fakeStatusReader{err: store.ErrApplicationNotFound},
			wantCode:   http.StatusNotFound,
			wantInBody: "application not found",
		},
		{
			name:       "store failure",
			reader:     &fakeStatusReader{err: errors.New("connection refused")},
			wantCode:   http.StatusInternalServerError,
			wantInBody: "status lookup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeRunner{}, logger.NewTestLogger(t), WithStatusReader(tt.reader))

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/applications/app-001/status", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCache, rec.Header().Get("X-Cache"))
			assert.Contains(t, rec.Body.String(), tt.wantInBody)
		})
	}
}

func TestReady(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	srv := NewServer(&fakeRunner{}, nil, WithReadinessCheck("postgres", healthy))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(&fakeRunner{}, nil, WithReadinessCheck("postgres", healthy), WithReadinessCheck("redis", broken))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"dial tcp: connection refused"`)
	assert.NotContains(t, rec.Body.String(), `"postgres"`)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := NewServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app-001.txt"), []byte("SANCTION LETTER"), 0o644))

	srv := NewServer(&fakeRunner{}, nil, WithDocuments(dir, "/documents"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/app-001.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SANCTION LETTER", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeStarter struct {
	processID string
	variables interface{}
	key       int64
	err       error
}

func (f *fakeStarter) StartProcess(_ context.Context, processID string, variables interface{}) (int64, error) {
	f.processID = processID
	f.variables = variables
	return f.key, f.err
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		starter  *fakeStarter
		wantCode int
		wantBody string
	}{
		{
			name:     "started",
			body:     testApplicationBody,
			starter:  &fakeStarter{key: 2251799813685249},
			wantCode: http.StatusAccepted,
			wantBody: `"processInstanceKey":2251799813685249`,
		},
		{
			name:     "missing id",
			body:     `{"customerName": "Asha Rao"}`,
			starter:  &fakeStarter{},
			wantCode: http.StatusBadRequest,
			wantBody: "applicationId is required",
		},
		{
			name:     "engine down",
			body:     testApplicationBody,
			starter:  &fakeStarter{err: errors.New("zeebe unavailable")},
			wantCode: http.StatusBadGateway,
			wantBody: "workflow engine unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeRunner{}, logger.NewTestLogger(t), WithProcessStarter(tt.starter, "loan-approval"))

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestSubmit_PassesApplicationVariable(t *testing.T) {
	starter := &fakeStarter{key: 1}
	srv := NewServer(&fakeRunner{}, nil, WithProcessStarter(starter, "loan-approval"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader(testApplicationBody)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "loan-approval", starter.processID)
	vars, ok := starter.variables.(map[string]interface{})
	require.True(t, ok)
	app, ok := vars["application"].(pipeline.Application)
	require.True(t, ok)
	assert.Equal(t, "app-001", app.ID)
}

func TestSubmit_DisabledWithoutStarter(t *testing.T) {
	srv := NewServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader(testApplicationBody)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
