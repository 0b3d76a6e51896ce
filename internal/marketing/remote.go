package marketing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/omtlabs/marketing-bridge/internal/config"
	"github.com/omtlabs/marketing-bridge/internal/logger"
)

// RemoteInvoker executes queries against a remote marketing service over
// HTTP. Every call carries the configured API key and a hard per-call
// deadline; all failure modes come back as typed failures, never as raw
// transport errors.
type RemoteInvoker struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	presets map[string]bool
	logger  *logger.Logger
}

func NewRemoteInvoker(cfg *config.Config, log *logger.Logger) *RemoteInvoker {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        cfg.UpstreamMaxIdleConns,
		MaxIdleConnsPerHost: cfg.UpstreamMaxIdleConnsPerHost,
		IdleConnTimeout:     time.Duration(cfg.UpstreamIdleConnTimeout) * time.Second,
	}

	presets := make(map[string]bool, len(cfg.Filters))
	for _, f := range cfg.Filters {
		presets[f.Label] = true
	}

	return &RemoteInvoker{
		baseURL: cfg.MarketingAPIURL,
		apiKey:  cfg.MarketingAPIKey,
		timeout: cfg.RequestTimeout,
		client:  &http.Client{Transport: transport},
		presets: presets,
		logger:  log.WithComponent("remote-invoker"),
	}
}

// filterPayload is the request body of POST /marketing/filter. Preset labels
// travel in "filter", free-text queries in "query".
type filterPayload struct {
	Format string `json:"format"`
	Limit  int    `json:"limit"`
	Filter string `json:"filter,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Invoke issues one HTTP call for the query. Status mapping: 401/403 is an
// auth failure, any 5xx a backend failure, connection errors are transport
// failures, an exceeded deadline a timeout, and a 2xx with an unparsable body
// a validation failure.
func (ri *RemoteInvoker) Invoke(ctx context.Context, q Query) (*QueryResult, *Failure) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	payload := filterPayload{Format: "full", Limit: limit}
	if ri.presets[q.Text] {
		payload.Filter = q.Text
	} else {
		payload.Query = q.Text
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Failure{
			Category: FailureValidation,
			Detail:   fmt.Sprintf("encode filter payload: %v", err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, ri.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ri.baseURL+"/marketing/filter", bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{
			Category: FailureValidation,
			Detail:   fmt.Sprintf("build upstream request: %v", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", ri.apiKey)

	resp, err := ri.client.Do(req)
	if err != nil {
		return nil, ri.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if fail := failureFromStatus(resp.StatusCode); fail != nil {
		ri.logger.Warn("upstream returned error status",
			slog.Int("status", resp.StatusCode),
			slog.String("category", string(fail.Category)))
		return nil, fail
	}

	var raw RawResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &Failure{
			Category:       FailureValidation,
			Detail:         fmt.Sprintf("unparsable upstream response: %v", err),
			UpstreamStatus: resp.StatusCode,
		}
	}

	if !raw.Success {
		detail := raw.Error
		if detail == "" {
			detail = "upstream reported failure without detail"
		}
		return nil, &Failure{
			Category:       FailureBackend,
			Detail:         detail,
			UpstreamStatus: resp.StatusCode,
		}
	}

	return Normalize(&raw, q.Text, EngineLLM), nil
}

// Filters fetches the upstream preset filter catalog.
func (ri *RemoteInvoker) Filters(ctx context.Context) ([]string, *Failure) {
	var body struct {
		Filters map[string]interface{} `json:"filters"`
	}
	if fail := ri.getJSON(ctx, "/marketing/filters", &body); fail != nil {
		return nil, fail
	}

	labels := make([]string, 0, len(body.Filters))
	for label := range body.Filters {
		labels = append(labels, label)
	}
	return labels, nil
}

// Summary fetches upstream customer statistics.
func (ri *RemoteInvoker) Summary(ctx context.Context) (map[string]interface{}, *Failure) {
	summary := map[string]interface{}{}
	if fail := ri.getJSON(ctx, "/marketing/summary", &summary); fail != nil {
		return nil, fail
	}
	return summary, nil
}

func (ri *RemoteInvoker) getJSON(ctx context.Context, path string, out interface{}) *Failure {
	ctx, cancel := context.WithTimeout(ctx, ri.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ri.baseURL+path, nil)
	if err != nil {
		return &Failure{
			Category: FailureValidation,
			Detail:   fmt.Sprintf("build upstream request: %v", err),
		}
	}
	req.Header.Set("X-API-Key", ri.apiKey)

	resp, err := ri.client.Do(req)
	if err != nil {
		return ri.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if fail := failureFromStatus(resp.StatusCode); fail != nil {
		return fail
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{
			Category:       FailureValidation,
			Detail:         fmt.Sprintf("unparsable upstream response: %v", err),
			UpstreamStatus: resp.StatusCode,
		}
	}

	return nil
}

// classifyTransportError distinguishes an exceeded deadline from a
// connectivity failure.
func (ri *RemoteInvoker) classifyTransportError(err error) *Failure {
	var urlErr *url.Error

	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()) {
		return &Failure{
			Category: FailureTimeout,
			Detail:   fmt.Sprintf("upstream call exceeded %s deadline", ri.timeout),
		}
	}

	return &Failure{
		Category: FailureTransport,
		Detail:   err.Error(),
	}
}

// failureFromStatus maps a non-2xx upstream status to a typed failure.
// Returns nil for 2xx.
func failureFromStatus(status int) *Failure {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Failure{
			Category:       FailureAuth,
			Detail:         "upstream rejected credentials",
			UpstreamStatus: status,
		}
	case status >= 500:
		return &Failure{
			Category:       FailureBackend,
			Detail:         fmt.Sprintf("upstream returned status %d", status),
			UpstreamStatus: status,
		}
	default:
		return &Failure{
			Category:       FailureValidation,
			Detail:         fmt.Sprintf("unexpected upstream status %d", status),
			UpstreamStatus: status,
		}
	}
}
