package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odslabs/ridebot/internal/contextcache"
	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

const (
	defaultMaxDecisionSteps = 10
	defaultDecisionTimeout  = 60 * time.Second

	// The observer only runs once a conversation has some substance.
	observerMinMessages = 4
)

// Orchestrator runs conversational turns. Turns for one session are
// sequential (the session is a single-writer resource); turns across
// sessions share only the retrieval cache and the decision provider, both of
// which are safe for concurrent use.
type Orchestrator struct {
	provider llm.Provider
	tools    *ToolSet
	store    *session.Store
	contexts *contextcache.Cache
	cfg      Config
	now      func() time.Time
}

// New creates an orchestrator. Zero config fields fall back to defaults.
func New(provider llm.Provider, tools *ToolSet, store *session.Store, contexts *contextcache.Cache, cfg Config) *Orchestrator {
	if cfg.MaxDecisionSteps <= 0 {
		cfg.MaxDecisionSteps = defaultMaxDecisionSteps
	}
	return &Orchestrator{
		provider: provider,
		tools:    tools,
		store:    store,
		contexts: contexts,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RunTurn processes one user message for the given rider and thread. An
// empty threadID starts a new conversation. The returned error covers
// rejected inputs and checkpoint-store failures only; model and tool
// failures are absorbed into the conversation per the failure rules.
func (o *Orchestrator) RunTurn(ctx context.Context, riderID int64, threadID, userMessage string) (*TurnResult, error) {
	if err := riders.ValidateRiderID(riderID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, fmt.Errorf("user message must not be empty")
	}
	if threadID == "" {
		threadID = uuid.New().String()
	}

	sess, err := o.store.GetOrCreate(ctx, threadID, riderID)
	if err != nil {
		return nil, err
	}

	messages, err := o.store.Messages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	snapshot, err := o.store.LoadSnapshot(ctx, threadID)
	if err != nil {
		return nil, err
	}

	// Long-term memory is best effort: a load failure costs personalization,
	// not the turn.
	insights, err := o.store.InsightsForRider(ctx, riderID)
	if err != nil {
		log.Printf("agent: thread %s: loading insights: %v", threadID, err)
		insights = nil
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: userMessage}
	if err := o.store.AppendMessage(ctx, threadID, userMsg); err != nil {
		return nil, err
	}
	messages = append(messages, userMsg)

	result := &TurnResult{ThreadID: threadID}
	var pendingCalls []llm.ToolCall

	for step := StepLoadContext; step != StepEnd; {
		switch step {
		case StepLoadContext:
			snap, _, err := o.contexts.GetOrRefresh(ctx, riderID, snapshot)
			if err != nil {
				return nil, err
			}
			snapshot = snap
			if err := o.store.SaveSnapshot(ctx, threadID, snapshot); err != nil {
				log.Printf("agent: thread %s: saving snapshot: %v", threadID, err)
			}
			step = StepDecide

		case StepDecide:
			result.Decisions++
			decision, err := o.decide(ctx, snapshot, insights, messages)
			if err != nil {
				// A backend failure ends the turn with an apology, never an
				// unhandled fault. Messages already committed stay committed.
				log.Printf("agent: thread %s: decision failed: %v", threadID, err)
				messages = o.commit(ctx, threadID, messages, llm.Message{
					Role:    llm.RoleAssistant,
					Content: decisionFailedMessage,
				})
				result.Reply = decisionFailedMessage
				step = StepEnd
				break
			}

			if len(decision.ToolCalls) > 0 {
				if result.Decisions >= o.cfg.MaxDecisionSteps {
					// Budget exhausted: substitute a terminal message rather
					// than execute a single call beyond the limit.
					messages = o.commit(ctx, threadID, messages, llm.Message{
						Role:    llm.RoleAssistant,
						Content: budgetExhaustedMessage,
					})
					result.Reply = budgetExhaustedMessage
					step = StepEnd
					break
				}
				messages = o.commit(ctx, threadID, messages, llm.Message{
					Role:      llm.RoleAssistant,
					Content:   decision.Content,
					ToolCalls: decision.ToolCalls,
				})
				pendingCalls = decision.ToolCalls
				step = StepExecuteTools
				break
			}

			messages = o.commit(ctx, threadID, messages, llm.Message{
				Role:    llm.RoleAssistant,
				Content: decision.Content,
			})
			result.Reply = decision.Content
			if o.cfg.EnableObserver && len(messages) >= observerMinMessages {
				step = StepObserve
			} else {
				step = StepEnd
			}

		case StepExecuteTools:
			results := o.tools.ExecuteAll(ctx, sess, pendingCalls)
			result.ToolCalls += len(results)
			for _, msg := range results {
				messages = o.commit(ctx, threadID, messages, msg)
			}
			pendingCalls = nil
			step = StepDecide

		case StepObserve:
			// Best-effort: the observer never blocks turn completion.
			o.observe(ctx, riderID, messages)
			result.Observed = true
			step = StepEnd
		}
	}

	return result, nil
}

// decide runs one bounded model invocation.
func (o *Orchestrator) decide(ctx context.Context, snapshot contextcache.Snapshot, insights []session.Insight, messages []llm.Message) (*llm.Decision, error) {
	timeout := defaultDecisionTimeout
	if o.cfg.DecisionTimeout > 0 {
		timeout = time.Duration(o.cfg.DecisionTimeout) * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := llm.DecisionRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		Tools:       o.tools.Defs(),
		Messages: append(
			[]llm.Message{{Role: llm.RoleSystem, Content: BuildSystemPrompt(snapshot, insights, o.now())}},
			messages...),
	}
	return o.provider.Decide(dctx, req)
}

// commit appends a message to the checkpoint store and to the in-memory
// transcript. Store failures are logged; the turn keeps going on the
// in-memory copy so the rider still gets an answer.
func (o *Orchestrator) commit(ctx context.Context, threadID string, messages []llm.Message, msg llm.Message) []llm.Message {
	if err := o.store.AppendMessage(ctx, threadID, msg); err != nil {
		log.Printf("agent: thread %s: appending %s message: %v", threadID, msg.Role, err)
	}
	return append(messages, msg)
}
