package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "synthdata"

// Airflow talks to the Airflow stable REST API (v1).
type Airflow struct {
	base   string
	client *http.Client
}

// NewAirflow returns a client for the API rooted at base, e.g.
// http://localhost:8080/api/v1.
func NewAirflow(base, user, pass string) *Airflow {
	return &Airflow{
		base: strings.TrimRight(base, "/"),
		client: &http.Client{
			Transport: &basicAuth{user: user, pass: pass},
			Timeout:   30 * time.Second,
		},
	}
}

// basicAuth is a http.RoundTripper that adds the authorization header.
type basicAuth struct {
	user, pass string
	next       http.RoundTripper
}

func (b *basicAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(b.user, b.pass)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	next := b.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

type dagRun struct {
	DagRunID string `json:"dag_run_id"`
	State    string `json:"state"`
}

// Trigger creates a new DAG run and returns its id.
func (a *Airflow) Trigger(ctx context.Context, dagID string, conf map[string]any) (string, error) {
	if conf == nil {
		conf = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"conf": conf})
	if err != nil {
		return "", err
	}
	var run dagRun
	if err := a.do(ctx, http.MethodPost, a.runsURL(dagID), body, &run); err != nil {
		return "", fmt.Errorf("trigger %s: %w", dagID, err)
	}
	if run.DagRunID == "" {
		return "", fmt.Errorf("trigger %s: response has no dag_run_id", dagID)
	}
	return run.DagRunID, nil
}

// Status returns the state of a DAG run. States other than queued, success
// and failed (up_for_retry, restarting, ...) are reported as running.
func (a *Airflow) Status(ctx context.Context, dagID, runID string) (State, error) {
	var run dagRun
	if err := a.do(ctx, http.MethodGet, a.runsURL(dagID)+"/"+url.PathEscape(runID), nil, &run); err != nil {
		return "", fmt.Errorf("status %s/%s: %w", dagID, runID, err)
	}
	switch State(run.State) {
	case StateQueued, StateSuccess, StateFailed:
		return State(run.State), nil
	default:
		return StateRunning, nil
	}
}

func (a *Airflow) runsURL(dagID string) string {
	return a.base + "/dags/" + url.PathEscape(dagID) + "/dagRuns"
}

func (a *Airflow) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("airflow returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
