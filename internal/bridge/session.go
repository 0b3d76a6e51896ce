package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/omtlabs/marketing-bridge/internal/logger"
	"github.com/omtlabs/marketing-bridge/internal/marketing"
)

// Session coordinates one query's full lifecycle: session-started event,
// query echo, backend invocation through the configured transport, result and
// summary envelopes, and a terminal completion or error event. A session is a
// single logical task; nothing about it is shared across requests.
type Session struct {
	ID        string
	startedAt time.Time

	seq          *Sequencer
	invoker      marketing.Invoker
	displayLimit int
	logger       *logger.Logger
}

// NewSession creates the per-request session. An empty conversationID gets a
// fresh UUID.
func NewSession(conversationID string, invoker marketing.Invoker, w EventWriter, displayLimit int, log *logger.Logger) *Session {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	return &Session{
		ID:           conversationID,
		startedAt:    time.Now(),
		seq:          NewSequencer(conversationID, w),
		invoker:      invoker,
		displayLimit: displayLimit,
		logger: log.WithComponent("session").WithFields(map[string]interface{}{
			"conversation_id": conversationID,
		}),
	}
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	return s.seq.State()
}

// Run executes one query end to end. The returned error reports stream
// delivery problems only; backend failures are translated into error
// envelopes and are not errors from Run's point of view.
func (s *Session) Run(ctx context.Context, queryText string) error {
	if err := s.seq.EmitStarted(); err != nil {
		return err
	}
	if err := s.seq.EmitEcho(queryText); err != nil {
		return err
	}

	result, fail := s.invoker.Invoke(ctx, marketing.Query{
		Text:           queryText,
		ConversationID: s.ID,
		Limit:          100,
	})

	// Client gone mid-invocation: the result is discarded and no further
	// envelope is attempted.
	if ctx.Err() == context.Canceled {
		s.seq.Abort()
		s.logRequest(queryText, result, fail)
		return ctx.Err()
	}

	if fail != nil {
		ce := TranslateFailure(fail)
		err := s.seq.EmitError(ce.Message, ErrorPayload(fail))
		s.logRequest(queryText, nil, fail)
		return err
	}

	if err := s.seq.EmitResult(s.displayCopy(result)); err != nil {
		s.logRequest(queryText, result, nil)
		return err
	}

	if result.Count > 0 {
		if err := s.seq.EmitSummary(summarize(result)); err != nil {
			s.logRequest(queryText, result, nil)
			return err
		}
	}

	if err := s.seq.EmitCompleted(); err != nil {
		s.logRequest(queryText, result, nil)
		return err
	}

	s.logRequest(queryText, result, nil)
	return nil
}

// displayCopy truncates the record list to the display limit without touching
// the count. The original result stays intact for summary aggregation.
func (s *Session) displayCopy(result *marketing.QueryResult) *marketing.QueryResult {
	if s.displayLimit <= 0 || len(result.Customers) <= s.displayLimit {
		return result
	}

	display := *result
	display.Customers = result.Customers[:s.displayLimit]
	return &display
}

// summarize aggregates lifetime value over the full record set.
func summarize(result *marketing.QueryResult) ResultSummary {
	var totalLTV float64
	for _, c := range result.Customers {
		totalLTV += c.LifetimeValue
	}

	var avgLTV float64
	if len(result.Customers) > 0 {
		avgLTV = totalLTV / float64(len(result.Customers))
	}

	text := fmt.Sprintf(
		"**Query Results Summary**\n\n"+
			"- **Total Customers**: %d\n"+
			"- **Total Lifetime Value**: $%.2f\n"+
			"- **Average Lifetime Value**: $%.2f\n"+
			"- **Execution Time**: %.2fs\n"+
			"- **Engine Used**: %s\n",
		result.Count, totalLTV, avgLTV, result.ExecutionTime, result.EngineUsed)

	if result.TokensUsed > 0 {
		text += fmt.Sprintf("- **Tokens Used**: %d\n", result.TokensUsed)
	}

	return ResultSummary{
		Text:                 text,
		TotalCustomers:       result.Count,
		TotalLifetimeValue:   totalLTV,
		AverageLifetimeValue: avgLTV,
	}
}

// logRequest writes the one structured line each request gets. The upstream
// credential never appears here.
func (s *Session) logRequest(queryText string, result *marketing.QueryResult, fail *marketing.Failure) {
	args := []interface{}{
		slog.String("query", queryText),
		slog.String("status", string(s.seq.State())),
		slog.Duration("duration", time.Since(s.startedAt)),
	}

	if result != nil {
		args = append(args,
			slog.String("engine_used", string(result.EngineUsed)),
			slog.Float64("execution_time", result.ExecutionTime),
			slog.Int("count", result.Count),
		)
	}

	if fail != nil {
		args = append(args,
			slog.String("failure_category", string(fail.Category)),
			slog.Int("upstream_status", fail.UpstreamStatus),
		)
		s.logger.Error("marketing query failed", args...)
		return
	}

	s.logger.Info("marketing query handled", args...)
}
