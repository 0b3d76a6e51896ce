package marketing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omtlabs/marketing-bridge/internal/config"
)

func newRemoteConfig(baseURL string) *config.Config {
	return &config.Config{
		BridgeMode:      config.BridgeModeHTTP,
		MarketingAPIURL: baseURL,
		MarketingAPIKey: "test-api-key",
		RequestTimeout:  2 * time.Second,
		ConnectTimeout:  time.Second,
		Filters:         config.DefaultFilters(),
	}
}

func successBody(count int) RawResult {
	ids := make([]string, 0, count)
	customers := make([]CustomerRecord, 0, count)
	for i := 0; i < count; i++ {
		id := string(rune('a' + i))
		ids = append(ids, id)
		customers = append(customers, CustomerRecord{ID: id, Name: "Customer " + id, Segment: "VIP"})
	}

	c := count
	return RawResult{
		Success:       true,
		EngineUsed:    "fast_path",
		ExecutionTime: 0.01,
		Count:         &c,
		CustomerIDs:   ids,
		Customers:     customers,
		SQL:           "SELECT * FROM customers",
	}
}

func TestRemoteInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/marketing/filter" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-api-key" {
			t.Errorf("expected API key header, got %q", got)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload["filter"] != "VIP customers only" {
			t.Errorf("expected preset label in filter field, got %v", payload["filter"])
		}

		json.NewEncoder(w).Encode(successBody(5))
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	res, fail := ri.Invoke(context.Background(), Query{Text: "VIP customers only"})

	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if res.Count != 5 || len(res.CustomerIDs) != 5 {
		t.Errorf("expected 5 customers, got count=%d ids=%d", res.Count, len(res.CustomerIDs))
	}
	if res.EngineUsed != EngineFastPath {
		t.Errorf("expected fast_path engine, got %q", res.EngineUsed)
	}
}

func TestRemoteInvokeCustomQueryPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload["query"] != "wine lovers in Texas" {
			t.Errorf("expected free text in query field, got %v", payload["query"])
		}
		if _, ok := payload["filter"]; ok {
			t.Error("filter field must be absent for free-text queries")
		}

		json.NewEncoder(w).Encode(successBody(0))
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	res, fail := ri.Invoke(context.Background(), Query{Text: "wine lovers in Texas"})

	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if res.Count != 0 {
		t.Errorf("expected valid zero-result response, got count %d", res.Count)
	}
}

func TestRemoteInvokeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureAuth {
		t.Fatalf("expected auth failure, got %v", fail)
	}
	if fail.UpstreamStatus != http.StatusUnauthorized {
		t.Errorf("expected upstream status 401, got %d", fail.UpstreamStatus)
	}
}

func TestRemoteInvokeBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureBackend {
		t.Fatalf("expected backend failure, got %v", fail)
	}
	if !fail.Retryable() {
		t.Error("backend failure must be retryable")
	}
}

func TestRemoteInvokeUnparsableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureValidation {
		t.Fatalf("expected validation failure for unparsable 2xx body, got %v", fail)
	}
	if fail.Retryable() {
		t.Error("validation failure must not be retryable")
	}
}

func TestRemoteInvokeReportedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RawResult{Success: false, Error: "engine exploded"})
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureBackend {
		t.Fatalf("expected backend failure, got %v", fail)
	}
	if fail.Detail != "engine exploded" {
		t.Errorf("expected upstream error detail, got %q", fail.Detail)
	}
}

func TestRemoteInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := newRemoteConfig(srv.URL)
	cfg.RequestTimeout = 50 * time.Millisecond

	ri := NewRemoteInvoker(cfg, testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureTimeout {
		t.Fatalf("expected timeout failure, got %v", fail)
	}
}

func TestRemoteInvokeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(url), testLogger)
	_, fail := ri.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureTransport {
		t.Fatalf("expected transport failure, got %v", fail)
	}
}

// Scenario: the first upstream call fails with a 500, the retry succeeds.
// Exactly two calls reach the upstream.
func TestRemoteRetryTransientThenSuccess(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(successBody(5))
	}))
	defer srv.Close()

	invoker := NewRetryInvoker(NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger), testLogger)
	res, fail := invoker.Invoke(context.Background(), Query{Text: "vip"})

	if fail != nil {
		t.Fatalf("expected success after one retry, got %v", fail)
	}
	if res.Count != 5 {
		t.Errorf("expected count 5, got %d", res.Count)
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly 2 upstream calls, got %d", calls.Load())
	}
}

// Scenario: the upstream rejects the credential. No retry is attempted.
func TestRemoteNoRetryOnAuthFailure(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	invoker := NewRetryInvoker(NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger), testLogger)
	_, fail := invoker.Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil || fail.Category != FailureAuth {
		t.Fatalf("expected auth failure, got %v", fail)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 upstream call, got %d", calls.Load())
	}
}

func TestRemoteFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketing/filters" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"filters": map[string]interface{}{
				"VIP customers only": map[string]interface{}{},
			},
		})
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	labels, fail := ri.Filters(context.Background())

	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if len(labels) != 1 || labels[0] != "VIP customers only" {
		t.Errorf("unexpected filter labels: %v", labels)
	}
}

func TestRemoteSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketing/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"total_customers": 120})
	}))
	defer srv.Close()

	ri := NewRemoteInvoker(newRemoteConfig(srv.URL), testLogger)
	summary, fail := ri.Summary(context.Background())

	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if summary["total_customers"] != float64(120) {
		t.Errorf("unexpected summary: %v", summary)
	}
}
