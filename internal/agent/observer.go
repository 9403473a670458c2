package agent

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/odslabs/ridebot/internal/llm"
	"github.com/odslabs/ridebot/internal/session"
)

const observerPrompt = `You analyze a finished support conversation with a delivery rider and extract durable insights for future conversations.

Return a JSON object of the form:
{"insights": [{"kind": "preference|recurring_issue|context", "content": "..."}]}

Only extract things worth remembering across conversations: stable preferences, problems the rider keeps running into, or standing context about their situation. Return {"insights": []} when there is nothing durable.`

// observe extracts long-term insights from the conversation and stores them
// under the rider's id. It is strictly best-effort: every failure is logged
// and swallowed so observation can never affect the rider-visible outcome.
func (o *Orchestrator) observe(ctx context.Context, riderID int64, messages []llm.Message) {
	if len(messages) < observerMinMessages {
		return
	}

	var transcript strings.Builder
	for _, msg := range messages {
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			continue
		}
		transcript.WriteString(string(msg.Role))
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	decision, err := o.provider.Decide(ctx, llm.DecisionRequest{
		Model:    o.cfg.Model,
		JSONMode: true,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: observerPrompt},
			{Role: llm.RoleUser, Content: transcript.String()},
		},
	})
	if err != nil {
		log.Printf("agent: observer: extraction failed for rider %d: %v", riderID, err)
		return
	}

	var parsed struct {
		Insights []struct {
			Kind    string `json:"kind"`
			Content string `json:"content"`
		} `json:"insights"`
	}
	if err := json.Unmarshal([]byte(decision.Content), &parsed); err != nil {
		log.Printf("agent: observer: unparseable extraction for rider %d: %v", riderID, err)
		return
	}

	var insights []session.Insight
	for _, in := range parsed.Insights {
		if !validInsightKind(in.Kind) || strings.TrimSpace(in.Content) == "" {
			continue
		}
		insights = append(insights, session.Insight{RiderID: riderID, Kind: in.Kind, Content: in.Content})
	}
	if len(insights) == 0 {
		return
	}

	if err := o.store.SaveInsights(ctx, riderID, insights); err != nil {
		log.Printf("agent: observer: saving insights for rider %d: %v", riderID, err)
		return
	}
	log.Printf("agent: observer: stored %d insight(s) for rider %d", len(insights), riderID)
}

func validInsightKind(kind string) bool {
	switch kind {
	case "preference", "recurring_issue", "context":
		return true
	}
	return false
}
