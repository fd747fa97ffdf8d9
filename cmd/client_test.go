package cmd

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{&httpError{Status: http.StatusConflict}, ExitAlreadyRun},
		{&httpError{Status: http.StatusGatewayTimeout}, ExitStopTimeout},
		{&httpError{Status: http.StatusBadGateway}, ExitDeployFailed},
		{&httpError{Status: http.StatusInternalServerError}, ExitUnreachable},
		{errors.New("connection refused"), ExitUnreachable},
	}

	for _, tc := range cases {
		if got := exitCodeFor(tc.err); got != tc.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestClientBasicAuthAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"running","pid":42}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, "admin", "secret", time.Second)
	var status workerStatus
	if err := c.do(http.MethodGet, "/api/worker", &status); err != nil {
		t.Fatalf("do: %v", err)
	}
	if status.State != "running" || status.PID != 42 {
		t.Errorf("decoded %+v, want running/42", status)
	}
}

func TestClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"title":"Conflict","status":409,"detail":"Worker is already running"}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, "", "", time.Second)
	err := c.do(http.MethodPost, "/api/worker/start", nil)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	var herr *httpError
	if !errors.As(err, &herr) {
		t.Fatalf("error type = %T, want *httpError", err)
	}
	if herr.Status != http.StatusConflict {
		t.Errorf("status = %d, want 409", herr.Status)
	}
	if exitCodeFor(err) != ExitAlreadyRun {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), ExitAlreadyRun)
	}
}

func TestClientAddrNormalization(t *testing.T) {
	cases := []struct {
		addr string
		want string
	}{
		{"localhost:8090", "http://localhost:8090"},
		{":8090", "http://localhost:8090"},
		{"http://example.com:8090", "http://example.com:8090"},
		{"https://example.com/", "https://example.com"},
	}

	for _, tc := range cases {
		c := newClient(tc.addr, "", "", time.Second)
		if c.baseURL != tc.want {
			t.Errorf("newClient(%q).baseURL = %q, want %q", tc.addr, c.baseURL, tc.want)
		}
	}
}
