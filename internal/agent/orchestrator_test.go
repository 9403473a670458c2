package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/odslabs/ridebot/internal/contextcache"
	"github.com/odslabs/ridebot/internal/db"
	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

// scriptedProvider replays a fixed sequence of decisions, recording every
// request it receives. Running past the script is an error.
type scriptedProvider struct {
	mu       sync.Mutex
	script   []*llm.Decision
	errs     []error
	requests []llm.DecisionRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Decide(_ context.Context, req llm.DecisionRequest) (*llm.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	i := len(p.requests) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.script) {
		return nil, errors.New("scripted provider exhausted")
	}
	return p.script[i], nil
}

func answer(content string) *llm.Decision {
	return &llm.Decision{Content: content, FinishReason: "stop"}
}

func toolRequest(calls ...llm.ToolCall) *llm.Decision {
	return &llm.Decision{ToolCalls: calls, FinishReason: "tool_calls"}
}

func newTestOrchestrator(t *testing.T, provider llm.Provider, cfg Config) (*Orchestrator, *session.Store) {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := session.NewStore(database)

	source := riders.NewMockSource(time.Now)
	contexts := contextcache.New(source, contextcache.Policy{Threshold: 5 * time.Minute, BackoffOnFailure: true})

	indexes := retrieval.NewCache(1)
	loader := func(corpus string) (*retrieval.Index, error) {
		return nil, errors.New("no corpus on disk in this test")
	}
	tools := NewToolSet(source, source, indexes, loader, store, "handbook")

	if cfg.Model == "" {
		cfg.Model = "test-model"
	}
	return New(provider, tools, store, contexts, cfg), store
}

func TestRunTurn_DirectAnswer(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{answer("You get paid every Wednesday.")}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	result, err := orch.RunTurn(context.Background(), 7, "", "When do I get paid?")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.ThreadID == "" {
		t.Error("expected a generated thread id")
	}
	if result.Reply != "You get paid every Wednesday." {
		t.Errorf("reply = %q", result.Reply)
	}
	if result.Decisions != 1 || result.ToolCalls != 0 {
		t.Errorf("decisions=%d toolCalls=%d, want 1/0", result.Decisions, result.ToolCalls)
	}
	if result.Observed {
		t.Error("observer must not run when disabled")
	}

	// The decision request carries the system prompt plus the user message.
	req := provider.requests[0]
	if req.Messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %s, want system", req.Messages[0].Role)
	}
	if len(req.Tools) != 5 {
		t.Errorf("advertised %d tools, want 5", len(req.Tools))
	}

	// User and assistant messages are checkpointed.
	msgs, err := store.Messages(context.Background(), result.ThreadID)
	if err != nil {
		t.Fatalf("loading messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("checkpointed %d messages, want 2", len(msgs))
	}
}

func TestRunTurn_ToolLoop(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{
		toolRequest(llm.ToolCall{ID: "call_1", Name: toolGetRiderLocation, Arguments: "{}"}),
		answer("You are near the city center."),
	}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	result, err := orch.RunTurn(context.Background(), 7, "", "Where am I?")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Reply != "You are near the city center." {
		t.Errorf("reply = %q", result.Reply)
	}
	if result.Decisions != 2 || result.ToolCalls != 1 {
		t.Errorf("decisions=%d toolCalls=%d, want 2/1", result.Decisions, result.ToolCalls)
	}

	// user, assistant(tool request), tool result, assistant answer.
	msgs, err := store.Messages(context.Background(), result.ThreadID)
	if err != nil {
		t.Fatalf("loading messages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("checkpointed %d messages, want 4", len(msgs))
	}
	if msgs[2].Role != llm.RoleTool || msgs[2].ToolCallID != "call_1" {
		t.Errorf("tool message not checkpointed correctly: %+v", msgs[2])
	}
	if !strings.Contains(msgs[2].Content, "Current position") {
		t.Errorf("tool result content: %q", msgs[2].Content)
	}

	// The second decision sees the tool result.
	second := provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool {
		t.Errorf("second decision should end with the tool result, got %s", last.Role)
	}
}

func TestRunTurn_StepBudgetExhausted(t *testing.T) {
	// The model insists on calling tools forever; the budget cuts it off
	// before executing a call beyond the limit.
	loop := toolRequest(llm.ToolCall{ID: "call_x", Name: toolGetRiderLocation, Arguments: "{}"})
	provider := &scriptedProvider{script: []*llm.Decision{loop, loop, loop, loop, loop}}
	orch, _ := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 3})

	result, err := orch.RunTurn(context.Background(), 7, "", "Keep digging.")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Decisions != 3 {
		t.Errorf("decisions = %d, want exactly the budget of 3", result.Decisions)
	}
	if result.ToolCalls != 2 {
		t.Errorf("toolCalls = %d, want 2 (the final request is substituted, not executed)", result.ToolCalls)
	}
	if result.Reply != budgetExhaustedMessage {
		t.Errorf("reply = %q, want the budget substitute message", result.Reply)
	}
}

func TestRunTurn_DecisionFailureApologizes(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("backend on fire")}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	result, err := orch.RunTurn(context.Background(), 7, "", "Hello?")
	if err != nil {
		t.Fatalf("a model failure must not fail the turn: %v", err)
	}
	if result.Reply != decisionFailedMessage {
		t.Errorf("reply = %q, want the apology message", result.Reply)
	}

	// The user message and the apology are both checkpointed.
	msgs, err := store.Messages(context.Background(), result.ThreadID)
	if err != nil {
		t.Fatalf("loading messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != decisionFailedMessage {
		t.Errorf("checkpoint after failure: %+v", msgs)
	}
}

func TestRunTurn_RejectsBadInput(t *testing.T) {
	provider := &scriptedProvider{}
	orch, _ := newTestOrchestrator(t, provider, Config{})

	if _, err := orch.RunTurn(context.Background(), 0, "", "hi"); !errors.Is(err, riders.ErrInvalidRider) {
		t.Errorf("rider id 0: got %v, want ErrInvalidRider", err)
	}
	if _, err := orch.RunTurn(context.Background(), 7, "", "   "); err == nil {
		t.Error("blank message must be rejected")
	}
	if len(provider.requests) != 0 {
		t.Error("rejected input must not reach the model")
	}
}

func TestRunTurn_ThreadContinuation(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{
		answer("First answer."),
		answer("Second answer."),
	}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	first, err := orch.RunTurn(context.Background(), 7, "", "First question.")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	second, err := orch.RunTurn(context.Background(), 7, first.ThreadID, "Second question.")
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	if second.ThreadID != first.ThreadID {
		t.Errorf("thread id changed between turns")
	}

	// The second decision sees the whole history.
	req := provider.requests[1]
	var userMsgs int
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			userMsgs++
		}
	}
	if userMsgs != 2 {
		t.Errorf("second decision saw %d user messages, want 2", userMsgs)
	}

	msgs, err := store.Messages(context.Background(), first.ThreadID)
	if err != nil {
		t.Fatalf("loading messages: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("checkpointed %d messages across two turns, want 4", len(msgs))
	}
}

func TestRunTurn_ThreadRiderMismatch(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{answer("ok")}}
	orch, _ := newTestOrchestrator(t, provider, Config{})

	first, err := orch.RunTurn(context.Background(), 7, "", "mine")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := orch.RunTurn(context.Background(), 8, first.ThreadID, "not mine"); err == nil {
		t.Error("another rider must not be able to continue the thread")
	}
}

func TestRunTurn_ObserverExtractsInsights(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{
		answer("Noted, I'll keep it short."),
		answer("Done."),
		answer(`{"insights": [{"kind": "preference", "content": "Prefers short answers."}, {"kind": "bogus", "content": "dropped"}]}`),
	}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10, EnableObserver: true})

	// Turn one: only 2 messages, below the observer floor.
	first, err := orch.RunTurn(context.Background(), 7, "", "Please keep answers short.")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if first.Observed {
		t.Error("observer must not run on a conversation this short")
	}

	// Turn two reaches 4 messages, so the observer runs and stores the
	// valid insight while dropping the invalid kind.
	second, err := orch.RunTurn(context.Background(), 7, first.ThreadID, "Great, thanks.")
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	if !second.Observed {
		t.Fatal("observer should have run")
	}

	insights, err := store.InsightsForRider(context.Background(), 7)
	if err != nil {
		t.Fatalf("loading insights: %v", err)
	}
	if len(insights) != 1 {
		t.Fatalf("stored %d insights, want 1", len(insights))
	}
	if insights[0].Kind != "preference" || insights[0].Content != "Prefers short answers." {
		t.Errorf("stored insight: %+v", insights[0])
	}

	// The observer request runs in JSON mode without tools.
	obsReq := provider.requests[2]
	if !obsReq.JSONMode || len(obsReq.Tools) != 0 {
		t.Errorf("observer request: JSONMode=%v tools=%d", obsReq.JSONMode, len(obsReq.Tools))
	}
}

func TestRunTurn_StoredInsightsEnterSystemPrompt(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{answer("Short it is.")}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	err := store.SaveInsights(context.Background(), 7, []session.Insight{
		{Kind: "preference", Content: "Prefers short answers."},
	})
	if err != nil {
		t.Fatalf("saving insight: %v", err)
	}

	if _, err := orch.RunTurn(context.Background(), 7, "", "Hey."); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	system := provider.requests[0].Messages[0].Content
	if !strings.Contains(system, "Prefers short answers.") {
		t.Errorf("system prompt does not carry stored insights:\n%s", system)
	}
	if !strings.Contains(system, "[preference]") {
		t.Errorf("insight kind missing from the prompt:\n%s", system)
	}
}

func TestRunTurn_ObserverFailureDoesNotAffectReply(t *testing.T) {
	provider := &scriptedProvider{
		script: []*llm.Decision{answer("a"), answer("b"), nil},
		errs:   []error{nil, nil, errors.New("observer backend down")},
	}
	orch, _ := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10, EnableObserver: true})

	first, err := orch.RunTurn(context.Background(), 7, "", "one")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	second, err := orch.RunTurn(context.Background(), 7, first.ThreadID, "two")
	if err != nil {
		t.Fatalf("observer failure must not fail the turn: %v", err)
	}
	if second.Reply != "b" {
		t.Errorf("reply = %q", second.Reply)
	}
	if !second.Observed {
		t.Error("the observe step still ran, even though extraction failed")
	}
}

func TestRunTurn_ToolFailureBecomesTextualResult(t *testing.T) {
	provider := &scriptedProvider{script: []*llm.Decision{
		toolRequest(llm.ToolCall{ID: "call_1", Name: "no_such_tool", Arguments: "{}"}),
		answer("Sorry, that didn't work."),
	}}
	orch, store := newTestOrchestrator(t, provider, Config{MaxDecisionSteps: 10})

	result, err := orch.RunTurn(context.Background(), 7, "", "Do the impossible.")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Reply != "Sorry, that didn't work." {
		t.Errorf("reply = %q", result.Reply)
	}

	msgs, _ := store.Messages(context.Background(), result.ThreadID)
	if !strings.Contains(msgs[2].Content, "failed") {
		t.Errorf("tool failure should surface as a textual tool result: %q", msgs[2].Content)
	}
}
