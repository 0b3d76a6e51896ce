package marketing

// RawResult is the backend's wire shape before normalization. Both transports
// produce it: the remote marketing service returns it as JSON, the in-process
// query engine constructs it directly. Field-name and shape differences are
// reconciled in Normalize, which is the only way a RawResult becomes a
// QueryResult.
type RawResult struct {
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	Query         string                 `json:"query"`
	EngineUsed    string                 `json:"engine_used"`
	TokensUsed    int                    `json:"tokens_used"`
	ExecutionTime float64                `json:"execution_time"`
	Count         *int                   `json:"count"`
	CustomerIDs   []string               `json:"customer_ids"`
	Customers     []CustomerRecord       `json:"customers"`
	SQL           string                 `json:"sql"`
	Code          string                 `json:"code"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Normalize maps a raw backend result into the canonical QueryResult. It is
// total over well-formed backend output: unknown or missing optional fields
// default to empty or zero instead of failing, and zero matching records
// produce a valid result with Count 0, not an error.
//
// hint is the engine tag to assume when the backend didn't report a valid one.
func Normalize(raw *RawResult, queryText string, hint Engine) *QueryResult {
	engine := Engine(raw.EngineUsed)
	if !ValidEngine(engine) {
		engine = hint
	}
	if !ValidEngine(engine) {
		engine = EngineFastPath
	}

	ids := raw.CustomerIDs
	if ids == nil {
		ids = []string{}
	}

	customers := raw.Customers
	if customers == nil {
		customers = []CustomerRecord{}
	}

	// The ID list is authoritative for the count when both are populated.
	count := len(ids)
	if raw.Count != nil && len(ids) == 0 {
		count = *raw.Count
	}
	if count < 0 {
		count = 0
	}

	// The record list may never exceed the count.
	if len(customers) > count {
		customers = customers[:count]
	}

	metadata := raw.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	query := raw.Query
	if query == "" {
		query = queryText
	}

	tokens := raw.TokensUsed
	if tokens < 0 {
		tokens = 0
	}

	execTime := raw.ExecutionTime
	if execTime < 0 {
		execTime = 0
	}

	return &QueryResult{
		Query:         query,
		EngineUsed:    engine,
		TokensUsed:    tokens,
		ExecutionTime: execTime,
		Count:         count,
		CustomerIDs:   ids,
		Customers:     customers,
		SQL:           raw.SQL,
		Code:          raw.Code,
		Metadata:      metadata,
	}
}
