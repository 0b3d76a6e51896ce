// Package bridge exposes the marketing backend to the streaming chat client
// through a uniform event protocol: per-conversation sessions, strictly
// ordered envelopes, and a typed error channel.
package bridge

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the top-level envelope type.
type EventType string

const (
	EventConversationStarted EventType = "conversation_started"
	EventUserSendMessage     EventType = "user_send_message"
	EventToolEnd             EventType = "tool_end"
	EventStreamCompleted     EventType = "stream_completed"
)

// Tool names label the result cards the chat client renders. Unknown names
// render generically on the client, so new tools are backward compatible.
const (
	ToolNameFilter  = "omt.marketing.filter"
	ToolNameSummary = "omt.marketing.summary"
	ToolNameError   = "omt.marketing.error"
)

// Semantic tags carried in EventData.Type.
const (
	DataTypeConversationStarted = "conversation_started"
	DataTypeUserSendMessage     = "user_send_message"
	DataTypeMarketingResponse   = "marketing_response"
	DataTypeMarketingSummary    = "marketing_summary"
	DataTypeError               = "error"
	DataTypeStreamCompleted     = "stream_completed"
)

// Event is the single unit delivered to the streaming client.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData carries the envelope body. Payload is always valid JSON.
type EventData struct {
	Type        string                 `json:"type"`
	ToolName    string                 `json:"tool_name,omitempty"`
	ID          string                 `json:"id"`
	Timestamp   string                 `json:"timestamp"`
	InputParams map[string]interface{} `json:"input_params,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Payload     interface{}            `json:"payload,omitempty"`
}

// ResultSummary is the payload of a marketing_summary envelope.
type ResultSummary struct {
	Text                 string  `json:"text"`
	TotalCustomers       int     `json:"total_customers"`
	TotalLifetimeValue   float64 `json:"total_lifetime_value"`
	AverageLifetimeValue float64 `json:"average_lifetime_value"`
}

// EventWriter delivers envelopes to the outbound stream. Implementations push
// sequentially; the bridge never writes one session from two goroutines.
type EventWriter interface {
	WriteEvent(ev Event) error
}

func utcTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// newEvent attaches identifiers and timestamps to an envelope body.
func newEvent(eventType EventType, data EventData) Event {
	ts := utcTimestamp()
	data.ID = uuid.New().String()
	data.Timestamp = ts

	return Event{
		EventType: eventType,
		Timestamp: ts,
		Data:      data,
	}
}
