package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "table \"a\" {}\n", StripCodeFences("```hcl\ntable \"a\" {}\n```"))
	assert.Equal(t, "x = 1\n", StripCodeFences("  ```\nx = 1\n```  \n"))
	assert.Equal(t, "plain\n", StripCodeFences("plain"))
}

func TestPrompt(t *testing.T) {
	p, err := Prompt([]schema.TableSpec{{Name: "customers", RowCount: 10, Description: "ids like CUST-0001"}})
	require.NoError(t, err)
	assert.Contains(t, p, `"name": "customers"`)
	assert.Contains(t, p, "catch_phrase")
}

func gemini(t *testing.T, reply string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("key"))
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]string{"text": "```hcl\n"},
					map[string]string{"text": reply + "\n```"},
				}},
			}},
		})
	}))
}

func TestDraft(t *testing.T) {
	srv := gemini(t, `table "customers" {
  rows        = 10
  description = "ids like CUST-0001"
  key_pattern = "CUST-{4}"
  column "email" {
    kind = "email"
  }
}`, http.StatusOK)
	defer srv.Close()

	c := New("k3y", "gemini-test", WithEndpoint(srv.URL))
	s, text, err := c.Draft(context.Background(), []schema.TableSpec{{Name: "customers", RowCount: 10, Description: "ids like CUST-0001"}})
	require.NoError(t, err)
	assert.NotContains(t, text, "```")
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "CUST-{4}", s.Tables[0].KeyPattern)
}

func TestDraft_Invalid(t *testing.T) {
	srv := gemini(t, `import pandas as pd`, http.StatusOK)
	defer srv.Close()
	c := New("k3y", "gemini-test", WithEndpoint(srv.URL))
	_, text, err := c.Draft(context.Background(), []schema.TableSpec{{Name: "a", RowCount: 1}})
	assert.ErrorContains(t, err, "not a valid schema")
	assert.Contains(t, text, "pandas")
}

func TestGenerate_Errors(t *testing.T) {
	_, err := New("", "").Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrDisabled)

	srv := gemini(t, "", http.StatusBadRequest)
	defer srv.Close()
	_, err = New("k3y", "gemini-test", WithEndpoint(srv.URL)).Generate(context.Background(), "hi")
	assert.ErrorContains(t, err, "API key not valid")
	assert.NotContains(t, err.Error(), "k3y")
}
