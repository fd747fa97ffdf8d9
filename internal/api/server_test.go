package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skobelev/warden/internal/deploy"
	"github.com/skobelev/warden/internal/supervisor"
)

type fakeWorker struct {
	status   supervisor.Status
	startErr error
	stopErr  error
}

func (w *fakeWorker) Start() error {
	if w.startErr != nil {
		return w.startErr
	}
	w.status.State = supervisor.StateStarting
	return nil
}

func (w *fakeWorker) StopWithTimeout(time.Duration) error {
	if w.stopErr != nil {
		return w.stopErr
	}
	w.status.State = supervisor.StateStopped
	return nil
}

func (w *fakeWorker) Report() supervisor.Status {
	return w.status
}

type fakeDeployer struct {
	record  *deploy.Record
	err     error
	history []deploy.Record
}

func (d *fakeDeployer) Deploy(context.Context) (*deploy.Record, error) {
	return d.record, d.err
}

func (d *fakeDeployer) Rollback(context.Context) (*deploy.Record, error) {
	return d.record, d.err
}

func (d *fakeDeployer) History(limit int) ([]deploy.Record, error) {
	if limit > 0 && len(d.history) > limit {
		return d.history[:limit], nil
	}
	return d.history, nil
}

func newTestServer(worker *fakeWorker, deployer *fakeDeployer) *Server {
	return NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Worker:       worker,
		Deployer:     deployer,
	})
}

func doRequest(t *testing.T, s *Server, method, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	return rec
}

func TestHealthNoAuthRequired(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodGet, "/api/health", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestVersionNoAuthRequired(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodGet, "/api/version", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d, want 200", rec.Code)
	}

	var body struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid version body: %v", err)
	}
	if body.Version == "" || body.GoVersion == "" {
		t.Errorf("incomplete version body: %+v", body)
	}
}

func TestWorkerStatusRequiresAuth(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	if rec := doRequest(t, s, http.MethodGet, "/api/worker", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/worker", true); rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestWorkerStatusBody(t *testing.T) {
	worker := &fakeWorker{status: supervisor.Status{
		State:        supervisor.StateRunning,
		Command:      "python3 main.py",
		PID:          4242,
		StartedAt:    time.Now().Add(-time.Hour),
		Uptime:       time.Hour,
		RestartCount: 1,
	}}
	s := newTestServer(worker, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodGet, "/api/worker", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		State      string  `json:"state"`
		PID        int     `json:"pid"`
		UptimeSecs float64 `json:"uptime_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.State != "running" || body.PID != 4242 {
		t.Errorf("body = %+v, want running/4242", body)
	}
	if body.UptimeSecs < 3599 {
		t.Errorf("uptime = %v, want about an hour", body.UptimeSecs)
	}
}

func TestStartWorkerConflict(t *testing.T) {
	worker := &fakeWorker{startErr: supervisor.ErrAlreadyRunning}
	s := newTestServer(worker, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodPost, "/api/worker/start", true)
	if rec.Code != http.StatusConflict {
		t.Errorf("start while running = %d, want 409", rec.Code)
	}
}

func TestStopWorkerTimeout(t *testing.T) {
	worker := &fakeWorker{stopErr: supervisor.ErrStopTimeout}
	s := newTestServer(worker, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodPost, "/api/worker/stop", true)
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("stop timeout = %d, want 504", rec.Code)
	}
}

func TestDeployInProgressConflict(t *testing.T) {
	deployer := &fakeDeployer{err: &deploy.Error{Code: deploy.ErrCodeInProgress, Message: "busy"}}
	s := newTestServer(&fakeWorker{}, deployer)

	rec := doRequest(t, s, http.MethodPost, "/api/deploy", true)
	if rec.Code != http.StatusConflict {
		t.Errorf("concurrent deploy = %d, want 409", rec.Code)
	}
}

func TestDeployFailureMapsToBadGateway(t *testing.T) {
	deployer := &fakeDeployer{
		record: &deploy.Record{Outcome: deploy.OutcomeFailed},
		err:    &deploy.Error{Code: deploy.ErrCodeDeployFailed, Message: "update and rollback both failed"},
	}
	s := newTestServer(&fakeWorker{}, deployer)

	rec := doRequest(t, s, http.MethodPost, "/api/deploy", true)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed deploy = %d, want 502", rec.Code)
	}
}

func TestDeploySuccess(t *testing.T) {
	deployer := &fakeDeployer{record: &deploy.Record{
		Timestamp:   time.Now().UTC(),
		Outcome:     deploy.OutcomeSuccess,
		PreviousRef: "v1",
		NewRef:      "v2",
		Duration:    "3s",
	}}
	s := newTestServer(&fakeWorker{}, deployer)

	rec := doRequest(t, s, http.MethodPost, "/api/deploy", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("deploy = %d, want 200", rec.Code)
	}

	var body struct {
		Outcome string `json:"outcome"`
		NewRef  string `json:"new_ref"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Outcome != "success" || body.NewRef != "v2" {
		t.Errorf("body = %+v, want success/v2", body)
	}
}

func TestDeploymentHistory(t *testing.T) {
	deployer := &fakeDeployer{history: []deploy.Record{
		{Outcome: deploy.OutcomeSuccess, Duration: "2s"},
		{Outcome: deploy.OutcomeRolledBack, Duration: "9s"},
	}}
	s := newTestServer(&fakeWorker{}, deployer)

	rec := doRequest(t, s, http.MethodGet, "/api/deployments?limit=10", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("deployments = %d, want 200", rec.Code)
	}

	var body struct {
		Count       int `json:"count"`
		Deployments []struct {
			Outcome string `json:"outcome"`
		} `json:"deployments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	rec := doRequest(t, s, http.MethodGet, "/api/logs?limit=10", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs = %d, want 200", rec.Code)
	}

	var body struct {
		Entries []any `json:"entries"`
		Count   int   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
}

func TestBadCredentialsRejected(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	req := httptest.NewRequest(http.MethodGet, "/api/worker", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 response missing WWW-Authenticate header")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeWorker{}, &fakeDeployer{})

	req := httptest.NewRequest(http.MethodOptions, "/api/worker", nil)
	rec := httptest.NewRecorder()
	s.GetMux().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight missing Access-Control-Allow-Origin")
	}
}
