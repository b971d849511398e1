// Package synth drafts schema files with a hosted language model.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-pro"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("synthesis disabled: no API key configured")

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API root.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client. An empty model selects DefaultModel.
func New(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool { return c.apiKey != "" }

var promptTmpl = template.Must(template.New("prompt").Parse(`You are an expert data engineer. Rewrite the table definitions below as a
schema file in HCL for a synthetic data generator.

Rules:
1. One block per table: table "<name>" { rows = <n>, description = "...", primary_key = "...", key_pattern = "..." }.
2. Keep every table name, row count and foreign key exactly as given.
3. If a description mentions an id pattern (like CUST-XXXX or ORD followed by digits), set
   key_pattern using the form PREFIX{width} or PREFIX{width,start}, e.g. "CUST-{4}".
   Otherwise leave key_pattern out so keys are sequential integers from 1.
4. Add column "<name>" { kind = "<kind>" } blocks for the columns the description implies.
   Allowed kinds: {{.Kinds}}.
   Numeric kinds may set min and max; timestamp and date may set days_back.
5. Foreign keys are foreign_key { table = "<referenced table>" } blocks. Never add columns for ids
   that are not primary or foreign keys.

Respond ONLY with the HCL. Do not include markdown or explanation.

---
HERE ARE THE TABLES:
{{.Schema}}
---
`))

// Prompt renders the request text for tables.
func Prompt(tables []schema.TableSpec) (string, error) {
	js, err := json.MarshalIndent(schema.Schema{Tables: tables}, "", "  ")
	if err != nil {
		return "", err
	}
	kinds := schema.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	var buf bytes.Buffer
	err = promptTmpl.Execute(&buf, map[string]string{
		"Kinds":  strings.Join(names, ", "),
		"Schema": string(js),
	})
	return buf.String(), err
}

type (
	part    struct{ Text string `json:"text"` }
	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

// Generate sends prompt and returns the concatenated text of the first
// candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the key; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini response (%s): %w", resp.Status, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini returned %s", resp.Status)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

var fence = regexp.MustCompile("(?m)^\\s*```[A-Za-z0-9_-]*\\s*$")

// StripCodeFences removes markdown code fence lines from model output.
func StripCodeFences(s string) string {
	s = fence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s) + "\n"
}

// Draft asks the model to turn tables into a schema file. The returned
// text is parsed and validated; it is never executed.
func (c *Client) Draft(ctx context.Context, tables []schema.TableSpec) (*schema.Schema, string, error) {
	prompt, err := Prompt(tables)
	if err != nil {
		return nil, "", err
	}
	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	text := StripCodeFences(raw)
	s, err := schema.ParseHCL([]byte(text), "draft.hcl", nil)
	if err != nil {
		return nil, text, fmt.Errorf("model output is not a valid schema: %w", err)
	}
	if err := schema.Validate(s.Tables); err != nil {
		return nil, text, err
	}
	return s, text, nil
}
