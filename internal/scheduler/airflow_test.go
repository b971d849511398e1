package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAirflow_TriggerAndStatus(t *testing.T) {
	var gotConf map[string]any
	states := []string{"queued", "running", "up_for_retry", "success"}
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "airflow" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/dags/ai_database_generator/dagRuns":
			var body struct {
				Conf map[string]any `json:"conf"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotConf = body.Conf
			_ = json.NewEncoder(w).Encode(map[string]string{"dag_run_id": "manual__2024-01-01T00:00:00+00:00", "state": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/dags/ai_database_generator/dagRuns/manual__2024-01-01T00:00:00+00:00":
			_ = json.NewEncoder(w).Encode(map[string]string{"state": states[calls]})
			calls++
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewAirflow(srv.URL+"/api/v1/", "airflow", "secret")
	ctx := context.Background()
	runID, err := a.Trigger(ctx, "ai_database_generator", map[string]any{"schema": "retail.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "manual__2024-01-01T00:00:00+00:00", runID)
	assert.Equal(t, map[string]any{"schema": "retail.hcl"}, gotConf)

	var got []State
	for range states {
		s, err := a.Status(ctx, "ai_database_generator", runID)
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []State{StateQueued, StateRunning, StateRunning, StateSuccess}, got)
}

func TestAirflow_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dag paused", http.StatusConflict)
	}))
	defer srv.Close()

	a := NewAirflow(srv.URL, "u", "p")
	_, err := a.Trigger(context.Background(), "dag", nil)
	assert.ErrorContains(t, err, "409")
	assert.ErrorContains(t, err, "dag paused")

	_, err = a.Status(context.Background(), "dag", "run")
	assert.Error(t, err)
}
