package marketing

import "fmt"

// Engine is the backend-reported strategy tag indicating how a query was
// resolved. "fast_path" means the query was answered without a language-model
// call; it doubles as a cost signal for the client.
type Engine string

const (
	EngineFastPath     Engine = "fast_path"
	EngineCached       Engine = "cached"
	EngineLLM          Engine = "llm"
	EnginePresetFilter Engine = "preset_filter"
)

// ValidEngine reports whether e is one of the known engine tags.
func ValidEngine(e Engine) bool {
	switch e {
	case EngineFastPath, EngineCached, EngineLLM, EnginePresetFilter:
		return true
	}
	return false
}

// Query is one submitted marketing query. Immutable once submitted.
type Query struct {
	Text           string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// CustomerRecord is the fixed customer shape on the wire. The field set is
// part of the contract: values the backend doesn't know are serialized as
// explicit zero values, never omitted.
type CustomerRecord struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Segment          string  `json:"segment"`
	LifetimeValue    float64 `json:"lifetime_value"`
	TotalPurchases   int     `json:"total_purchases"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	LastPurchaseDate string  `json:"last_purchase_date"`
}

// QueryResult is the canonical result shape emitted to the client, identical
// for both transports.
//
// Invariants: Count == len(CustomerIDs) when both are populated, and
// len(Customers) <= Count (the record list may be truncated for display,
// the count never is).
type QueryResult struct {
	Query         string                 `json:"query"`
	EngineUsed    Engine                 `json:"engine_used"`
	TokensUsed    int                    `json:"tokens_used"`
	ExecutionTime float64                `json:"execution_time"`
	Count         int                    `json:"count"`
	CustomerIDs   []string               `json:"customer_ids"`
	Customers     []CustomerRecord       `json:"customers"`
	SQL           string                 `json:"sql"`
	Code          string                 `json:"code"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// FailureCategory classifies a backend invocation failure.
type FailureCategory string

const (
	// FailureTransport is a connectivity failure. Not retried: a broken
	// connection is unlikely to heal within the retry budget.
	FailureTransport FailureCategory = "transport"

	// FailureAuth means the upstream rejected our credential. Not retried.
	FailureAuth FailureCategory = "auth"

	// FailureBackend is an upstream 5xx or an in-process backend fault. Retried once.
	FailureBackend FailureCategory = "backend"

	// FailureValidation is malformed input or unparsable backend output. Not retried.
	FailureValidation FailureCategory = "validation"

	// FailureTimeout means the per-call deadline was exceeded. Retried once.
	FailureTimeout FailureCategory = "timeout"
)

// Failure is the typed outcome of a failed invocation. Never mutated after
// creation; owned by the session that produced it.
type Failure struct {
	Category       FailureCategory
	Detail         string
	UpstreamStatus int // 0 when no upstream HTTP status applies
}

// Retryable reports whether the failure is transient enough to qualify for
// the single-retry budget.
func (f *Failure) Retryable() bool {
	return f.Category == FailureBackend || f.Category == FailureTimeout
}

func (f *Failure) String() string {
	if f.UpstreamStatus > 0 {
		return fmt.Sprintf("%s (upstream status %d): %s", f.Category, f.UpstreamStatus, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Category, f.Detail)
}
