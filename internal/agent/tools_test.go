package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/odslabs/ridebot/internal/db"
	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

func newTestToolSet(t *testing.T) (*ToolSet, *session.Store, *session.Session) {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := session.NewStore(database)

	sess, err := store.GetOrCreate(context.Background(), "thread-1", 7)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	source := riders.NewMockSource(time.Now)
	indexes := retrieval.NewCache(1)
	loader := func(corpus string) (*retrieval.Index, error) {
		return nil, errors.New("corpus not built")
	}
	return NewToolSet(source, source, indexes, loader, store, "handbook"), store, sess
}

func TestManageTripState_TwoPhaseConfirmation(t *testing.T) {
	tools, store, sess := newTestToolSet(t)
	ctx := context.Background()

	// First call registers intent and asks for confirmation.
	first := tools.Execute(ctx, sess, llm.ToolCall{
		ID:        "call_1",
		Name:      toolManageTripState,
		Arguments: `{"action": "cancel", "trip_id": 42, "reason": "customer unreachable"}`,
	})
	if !strings.Contains(first.Content, "Confirmation required") {
		t.Fatalf("first call must ask for confirmation: %q", first.Content)
	}

	// The pending confirmation is persisted, not just in memory.
	reloaded, err := store.Get(ctx, sess.ThreadID)
	if err != nil {
		t.Fatalf("reloading session: %v", err)
	}
	if !reloaded.PendingConfirmation.Matches("cancel", 42) {
		t.Fatalf("pending confirmation not persisted: %+v", reloaded.PendingConfirmation)
	}

	// A second matching call executes the change and clears the pending state.
	second := tools.Execute(ctx, sess, llm.ToolCall{
		ID:        "call_2",
		Name:      toolManageTripState,
		Arguments: `{"action": "cancel", "trip_id": 42}`,
	})
	if !strings.Contains(second.Content, "Trip 42 updated") {
		t.Fatalf("confirmed call should execute: %q", second.Content)
	}

	reloaded, err = store.Get(ctx, sess.ThreadID)
	if err != nil {
		t.Fatalf("reloading session: %v", err)
	}
	if reloaded.PendingConfirmation != nil {
		t.Errorf("pending confirmation not cleared: %+v", reloaded.PendingConfirmation)
	}
}

func TestManageTripState_DifferentRequestResetsConfirmation(t *testing.T) {
	tools, _, sess := newTestToolSet(t)
	ctx := context.Background()

	tools.Execute(ctx, sess, llm.ToolCall{
		ID:        "call_1",
		Name:      toolManageTripState,
		Arguments: `{"action": "cancel", "trip_id": 42}`,
	})

	// Asking for a different change replaces the pending intent instead of
	// executing anything.
	result := tools.Execute(ctx, sess, llm.ToolCall{
		ID:        "call_2",
		Name:      toolManageTripState,
		Arguments: `{"action": "release", "trip_id": 43}`,
	})
	if !strings.Contains(result.Content, "Confirmation required") {
		t.Fatalf("changed request must restart confirmation: %q", result.Content)
	}
	if !sess.PendingConfirmation.Matches("release", 43) {
		t.Errorf("pending confirmation not replaced: %+v", sess.PendingConfirmation)
	}
}

func TestManageTripState_RejectsBadArguments(t *testing.T) {
	tools, _, sess := newTestToolSet(t)
	ctx := context.Background()

	cases := []struct {
		name string
		args string
	}{
		{"unknown action", `{"action": "teleport", "trip_id": 42}`},
		{"non-positive trip id", `{"action": "cancel", "trip_id": 0}`},
		{"malformed json", `{"action": `},
	}
	for _, tc := range cases {
		result := tools.Execute(ctx, sess, llm.ToolCall{ID: "c", Name: toolManageTripState, Arguments: tc.args})
		if !strings.Contains(result.Content, "failed") {
			t.Errorf("%s: expected a failure result, got %q", tc.name, result.Content)
		}
		if result.Role != llm.RoleTool {
			t.Errorf("%s: failures still come back as tool messages", tc.name)
		}
	}
	if sess.PendingConfirmation != nil {
		t.Errorf("rejected requests must not register intent: %+v", sess.PendingConfirmation)
	}
}

func TestEscalate_RecordsTicket(t *testing.T) {
	tools, _, sess := newTestToolSet(t)

	result := tools.Execute(context.Background(), sess, llm.ToolCall{
		ID:        "call_1",
		Name:      toolEscalateToHuman,
		Arguments: `{"reason": "rider demands a human"}`,
	})
	if !strings.Contains(result.Content, "escalated to human support") {
		t.Fatalf("escalation result: %q", result.Content)
	}
	if !strings.Contains(result.Content, "ticket ") {
		t.Errorf("escalation should mention the ticket id: %q", result.Content)
	}
}

func TestEscalate_RequiresReason(t *testing.T) {
	tools, _, sess := newTestToolSet(t)

	result := tools.Execute(context.Background(), sess, llm.ToolCall{
		ID:        "call_1",
		Name:      toolEscalateToHuman,
		Arguments: `{"reason": "  "}`,
	})
	if !strings.Contains(result.Content, "failed") {
		t.Errorf("blank reason should fail: %q", result.Content)
	}
}

func TestSearchDocuments_MissingCorpusFailsSoftly(t *testing.T) {
	tools, _, sess := newTestToolSet(t)

	result := tools.Execute(context.Background(), sess, llm.ToolCall{
		ID:        "call_1",
		Name:      toolSearchDocuments,
		Arguments: `{"query": "payment schedule"}`,
	})
	if result.Role != llm.RoleTool {
		t.Fatalf("missing corpus must not escape the tool layer")
	}
	if !strings.Contains(result.Content, "failed") {
		t.Errorf("expected a textual failure, got %q", result.Content)
	}
}

func TestExecuteAll_PreservesRequestOrder(t *testing.T) {
	tools, _, sess := newTestToolSet(t)

	calls := []llm.ToolCall{
		{ID: "call_a", Name: toolGetRiderLocation, Arguments: "{}"},
		{ID: "call_b", Name: toolGetActiveChallenges, Arguments: "{}"},
		{ID: "call_c", Name: "bogus", Arguments: "{}"},
	}
	results := tools.ExecuteAll(context.Background(), sess, calls)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, call := range calls {
		if results[i].ToolCallID != call.ID {
			t.Errorf("result %d has ToolCallID %q, want %q", i, results[i].ToolCallID, call.ID)
		}
		if results[i].Name != call.Name {
			t.Errorf("result %d has Name %q, want %q", i, results[i].Name, call.Name)
		}
	}
	if !strings.Contains(results[2].Content, "unknown tool") {
		t.Errorf("bogus tool result: %q", results[2].Content)
	}
}

func TestExecuteAll_SequencesTripStateCalls(t *testing.T) {
	tools, store, sess := newTestToolSet(t)
	ctx := context.Background()

	// Two trip-state requests in one decision must not race on the session's
	// pending confirmation; they run in request order, other tools alongside.
	calls := []llm.ToolCall{
		{ID: "call_a", Name: toolManageTripState, Arguments: `{"action": "release", "trip_id": 701}`},
		{ID: "call_b", Name: toolGetRiderLocation, Arguments: "{}"},
		{ID: "call_c", Name: toolManageTripState, Arguments: `{"action": "cancel", "trip_id": 702}`},
	}
	results := tools.ExecuteAll(ctx, sess, calls)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if !strings.Contains(results[0].Content, "release trip 701") {
		t.Errorf("first trip-state result: %q", results[0].Content)
	}
	if !strings.Contains(results[2].Content, "cancel trip 702") {
		t.Errorf("second trip-state result: %q", results[2].Content)
	}
	if !strings.Contains(results[1].Content, "Current position") {
		t.Errorf("location result: %q", results[1].Content)
	}

	// The later request wins the pending slot, in memory and in the store.
	if !sess.PendingConfirmation.Matches("cancel", 702) {
		t.Errorf("pending confirmation: %+v", sess.PendingConfirmation)
	}
	reloaded, err := store.Get(ctx, sess.ThreadID)
	if err != nil {
		t.Fatalf("reloading session: %v", err)
	}
	if !reloaded.PendingConfirmation.Matches("cancel", 702) {
		t.Errorf("persisted confirmation: %+v", reloaded.PendingConfirmation)
	}
}
