package marketing

import (
	"context"
	"testing"
)

// scriptedInvoker plays back a fixed sequence of outcomes and counts calls.
type scriptedInvoker struct {
	calls    int
	outcomes []scriptedOutcome
}

type scriptedOutcome struct {
	res  *QueryResult
	fail *Failure
}

func (s *scriptedInvoker) Invoke(ctx context.Context, q Query) (*QueryResult, *Failure) {
	outcome := s.outcomes[len(s.outcomes)-1]
	if s.calls < len(s.outcomes) {
		outcome = s.outcomes[s.calls]
	}
	s.calls++
	return outcome.res, outcome.fail
}

func (s *scriptedInvoker) Filters(ctx context.Context) ([]string, *Failure) {
	return nil, nil
}

func (s *scriptedInvoker) Summary(ctx context.Context) (map[string]interface{}, *Failure) {
	return nil, nil
}

func TestRetryTimeoutThenSuccess(t *testing.T) {
	next := &scriptedInvoker{outcomes: []scriptedOutcome{
		{fail: &Failure{Category: FailureTimeout, Detail: "deadline exceeded"}},
		{res: &QueryResult{Count: 5}},
	}}

	res, fail := NewRetryInvoker(next, testLogger).Invoke(context.Background(), Query{Text: "vip"})

	if fail != nil {
		t.Fatalf("expected success after retry, got failure: %v", fail)
	}
	if res.Count != 5 {
		t.Errorf("expected count 5, got %d", res.Count)
	}
	if next.calls != 2 {
		t.Errorf("expected exactly 2 upstream calls, got %d", next.calls)
	}
}

func TestRetryExactlyOnceOnRepeatedFailure(t *testing.T) {
	next := &scriptedInvoker{outcomes: []scriptedOutcome{
		{fail: &Failure{Category: FailureBackend, UpstreamStatus: 500}},
		{fail: &Failure{Category: FailureBackend, UpstreamStatus: 503}},
		{res: &QueryResult{Count: 1}}, // must never be reached
	}}

	_, fail := NewRetryInvoker(next, testLogger).Invoke(context.Background(), Query{Text: "vip"})

	if fail == nil {
		t.Fatal("expected the second failure to surface")
	}
	if fail.UpstreamStatus != 503 {
		t.Errorf("expected second failure surfaced (status 503), got %d", fail.UpstreamStatus)
	}
	if next.calls != 2 {
		t.Errorf("expected exactly 2 upstream calls, got %d", next.calls)
	}
}

func TestNoRetryOnNonTransientCategories(t *testing.T) {
	for _, category := range []FailureCategory{FailureAuth, FailureValidation, FailureTransport} {
		t.Run(string(category), func(t *testing.T) {
			next := &scriptedInvoker{outcomes: []scriptedOutcome{
				{fail: &Failure{Category: category}},
			}}

			_, fail := NewRetryInvoker(next, testLogger).Invoke(context.Background(), Query{Text: "vip"})

			if fail == nil || fail.Category != category {
				t.Fatalf("expected %s failure surfaced, got %v", category, fail)
			}
			if next.calls != 1 {
				t.Errorf("expected 1 upstream call, got %d", next.calls)
			}
		})
	}
}

func TestNoRetryAfterClientGone(t *testing.T) {
	next := &scriptedInvoker{outcomes: []scriptedOutcome{
		{fail: &Failure{Category: FailureTimeout}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, fail := NewRetryInvoker(next, testLogger).Invoke(ctx, Query{Text: "vip"})

	if fail == nil || fail.Category != FailureTimeout {
		t.Fatalf("expected timeout failure surfaced, got %v", fail)
	}
	if next.calls != 1 {
		t.Errorf("expected no retry for a cancelled caller, got %d calls", next.calls)
	}
}
