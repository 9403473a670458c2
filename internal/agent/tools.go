package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
	"github.com/odslabs/ridebot/internal/session"
)

// Tool names exposed to the decision model.
const (
	toolManageTripState     = "manage_trip_state"
	toolGetActiveChallenges = "get_active_challenges"
	toolSearchDocuments     = "search_documents"
	toolGetRiderLocation    = "get_rider_location"
	toolEscalateToHuman     = "escalate_to_human"
)

const defaultSearchResults = 2

// ToolSet executes the tools the model may request. Every tool failure is
// converted into a textual result fed back to the next decision, never an
// orchestrator fault.
type ToolSet struct {
	source  riders.ContextSource
	trips   riders.TripManager
	indexes *retrieval.Cache
	loader  retrieval.Loader
	store   *session.Store
	corpus  string
}

// NewToolSet wires the tool layer. corpus is the corpus id searched by the
// document-search tool; loader resolves corpus ids to index handles through
// the shared retrieval cache.
func NewToolSet(source riders.ContextSource, trips riders.TripManager, indexes *retrieval.Cache, loader retrieval.Loader, store *session.Store, corpus string) *ToolSet {
	return &ToolSet{
		source:  source,
		trips:   trips,
		indexes: indexes,
		loader:  loader,
		store:   store,
		corpus:  corpus,
	}
}

// Defs returns the tool definitions advertised to the model.
func (t *ToolSet) Defs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        toolManageTripState,
			Description: "Change the state of a trip (release, cancel, or mark as not delivered). Always requires explicit rider confirmation: the first call registers the request, a second identical call after the rider confirms executes it.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type":        "string",
						"enum":        []string{riders.ActionRelease, riders.ActionCancel, riders.ActionNotDelivered},
						"description": "The state change to apply",
					},
					"trip_id": map[string]any{
						"type":        "integer",
						"description": "ID of the trip to change",
					},
					"reason": map[string]any{
						"type":        "string",
						"description": "Reason for the change, inferred from the conversation",
					},
				},
				"required": []string{"action", "trip_id"},
			},
		},
		{
			Name:        toolGetActiveChallenges,
			Description: "List the rider's active challenges and bonuses, including reward tiers and current progress.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        toolSearchDocuments,
			Description: "Search the rider policy handbook semantically. Use at most once per question, then synthesize the answer from the results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The rider's question, rephrased as a search query",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 2)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolGetRiderLocation,
			Description: "Get the rider's most recent GPS position.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        toolEscalateToHuman,
			Description: "Hand the conversation over to a human support agent. Use when the rider asks for a person, the request is out of scope, or you cannot resolve the problem.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{
						"type":        "string",
						"description": "Why the conversation is being escalated",
					},
				},
				"required": []string{"reason"},
			},
		},
	}
}

// ExecuteAll runs the requested tool calls and returns one tool message per
// call, in request order. Trip-state calls read and replace the session's
// pending confirmation, so they run sequentially in request order; the other
// tools run concurrently. A failing call does not block the others.
func (t *ToolSet) ExecuteAll(ctx context.Context, sess *session.Session, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		if call.Name == toolManageTripState {
			continue
		}
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = t.Execute(ctx, sess, call)
		}(i, call)
	}
	for i, call := range calls {
		if call.Name == toolManageTripState {
			results[i] = t.Execute(ctx, sess, call)
		}
	}
	wg.Wait()
	return results
}

// Execute runs one tool call and returns its result as a tool message.
func (t *ToolSet) Execute(ctx context.Context, sess *session.Session, call llm.ToolCall) llm.Message {
	content, err := t.dispatch(ctx, sess, call)
	if err != nil {
		content = fmt.Sprintf("Tool %s failed: %v. Let the rider know and offer to escalate if the problem persists.", call.Name, err)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

func (t *ToolSet) dispatch(ctx context.Context, sess *session.Session, call llm.ToolCall) (string, error) {
	switch call.Name {
	case toolManageTripState:
		return t.manageTripState(ctx, sess, call.Arguments)
	case toolGetActiveChallenges:
		return t.activeChallenges(ctx, sess)
	case toolSearchDocuments:
		return t.searchDocuments(ctx, call.Arguments)
	case toolGetRiderLocation:
		return t.riderLocation(ctx, sess)
	case toolEscalateToHuman:
		return t.escalate(ctx, sess, call.Arguments)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (t *ToolSet) manageTripState(ctx context.Context, sess *session.Session, rawArgs string) (string, error) {
	var args struct {
		Action string `json:"action"`
		TripID int64  `json:"trip_id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	if !riders.ValidAction(args.Action) {
		return "", fmt.Errorf("unknown trip action %q", args.Action)
	}
	if args.TripID <= 0 {
		return "", fmt.Errorf("trip_id must be positive, got %d", args.TripID)
	}

	// Two-phase confirmation: the first request only records intent. The
	// change executes when a later call matches the recorded intent, which
	// the model issues after the rider confirms.
	if !sess.PendingConfirmation.Matches(args.Action, args.TripID) {
		pc := &session.PendingConfirmation{Action: args.Action, TripID: args.TripID, Reason: args.Reason}
		if err := t.store.SetPendingConfirmation(ctx, sess.ThreadID, pc); err != nil {
			return "", err
		}
		sess.PendingConfirmation = pc
		return fmt.Sprintf(
			"Confirmation required: %s trip %d is registered but NOT executed yet. Ask the rider to explicitly confirm, then call this tool again with the same action and trip_id.",
			args.Action, args.TripID), nil
	}

	reason := args.Reason
	if reason == "" {
		reason = sess.PendingConfirmation.Reason
	}
	result, err := t.trips.ChangeTripState(ctx, sess.RiderID, args.TripID, args.Action, reason)
	if err != nil {
		return "", fmt.Errorf("changing trip state: %w", err)
	}
	if err := t.store.SetPendingConfirmation(ctx, sess.ThreadID, nil); err != nil {
		return "", err
	}
	sess.PendingConfirmation = nil
	return result, nil
}

func (t *ToolSet) activeChallenges(ctx context.Context, sess *session.Session) (string, error) {
	res := t.source.ActiveChallenges(ctx, sess.RiderID)
	switch res.Status {
	case riders.StatusNotFound:
		return "There are no active challenges at the moment.", nil
	case riders.StatusError:
		return "", res.Err
	}
	if len(res.Value) == 0 {
		return "There are no active challenges at the moment.", nil
	}
	return formatChallenges(res.Value), nil
}

func formatChallenges(challenges []riders.Challenge) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Active challenges (%d):\n\n", len(challenges)))
	for i, c := range challenges {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, c.Name))
		sb.WriteString(fmt.Sprintf("   Type: %s\n", c.TypeName))
		if c.Description != "" {
			sb.WriteString(fmt.Sprintf("   Description: %s\n", c.Description))
		}
		if c.StartsAt != nil && c.EndsAt != nil {
			sb.WriteString(fmt.Sprintf("   Period: %s - %s\n",
				c.StartsAt.Format("02/01/2006"), c.EndsAt.Format("02/01/2006")))
		}
		sb.WriteString(fmt.Sprintf("   Trips completed: %d\n", c.TripsCompleted))
		sb.WriteString(fmt.Sprintf("   Earned so far: $%.2f\n", c.EarnedSoFar))
		if len(c.Tiers) > 0 {
			sb.WriteString("   Reward tiers:\n")
			for _, tier := range c.Tiers {
				sb.WriteString(fmt.Sprintf("     - %d trips -> $%.2f\n", tier.TripCount, tier.Reward))
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func (t *ToolSet) searchDocuments(ctx context.Context, rawArgs string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	if args.Limit <= 0 {
		args.Limit = defaultSearchResults
	}

	ix, err := t.indexes.Get(t.corpus, t.loader)
	if err != nil {
		return "", fmt.Errorf("loading corpus %q: %w", t.corpus, err)
	}

	fragments, err := ix.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return "", err
	}
	return retrieval.FormatFragments(args.Query, fragments), nil
}

func (t *ToolSet) riderLocation(ctx context.Context, sess *session.Session) (string, error) {
	res := t.source.Location(ctx, sess.RiderID)
	switch res.Status {
	case riders.StatusNotFound:
		return "The rider's location is not available right now.", nil
	case riders.StatusError:
		return "", res.Err
	}
	loc := res.Value
	return fmt.Sprintf("Current position: lat %.6f, lng %.6f (accuracy %.0f m, reported %s).",
		loc.Latitude, loc.Longitude, loc.Accuracy, loc.Timestamp.Format("15:04:05")), nil
}

func (t *ToolSet) escalate(ctx context.Context, sess *session.Session, rawArgs string) (string, error) {
	var args struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	if strings.TrimSpace(args.Reason) == "" {
		return "", fmt.Errorf("reason must not be empty")
	}

	ticket, err := t.store.RecordEscalation(ctx, sess.ThreadID, sess.RiderID, args.Reason)
	if err != nil {
		return "", fmt.Errorf("recording escalation: %w", err)
	}
	return fmt.Sprintf(
		"The conversation has been escalated to human support (ticket %s). A member of the support team will contact the rider shortly.", ticket), nil
}
