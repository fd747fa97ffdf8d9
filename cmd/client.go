// Package cmd holds the CLI subcommands that talk to a running warden
// daemon over its HTTP API.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Exit codes shared by all subcommands.
const (
	ExitOK           = 0
	ExitAlreadyRun   = 1
	ExitStopTimeout  = 2
	ExitDeployFailed = 3
	ExitUnreachable  = 4
)

// client talks to the daemon API with basic auth.
type client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func newClient(addr, username, password string, timeout time.Duration) *client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		addr = "http://" + addr
	}
	return &client{
		baseURL:  strings.TrimRight(addr, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// apiError is the RFC 7807 style problem body Huma returns.
type apiError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// do performs a request and decodes a JSON response into out (if non-nil).
// Non-2xx responses are returned as *httpError.
func (c *client) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &httpError{Status: resp.StatusCode}
		var problem apiError
		if json.Unmarshal(body, &problem) == nil && (problem.Detail != "" || problem.Title != "") {
			herr.Message = problem.Error()
		} else {
			herr.Message = strings.TrimSpace(string(body))
		}
		return herr
	}

	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// httpError carries the response status for exit code mapping.
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// exitCodeFor maps an API error to the CLI exit code contract.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if herr, ok := err.(*httpError); ok {
		switch herr.Status {
		case http.StatusConflict:
			return ExitAlreadyRun
		case http.StatusGatewayTimeout:
			return ExitStopTimeout
		case http.StatusBadGateway:
			return ExitDeployFailed
		}
	}
	return ExitUnreachable
}

// fail prints the error and exits with the mapped code.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitCodeFor(err))
}
