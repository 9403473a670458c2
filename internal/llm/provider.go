package llm

import "context"

// Provider defines the interface for decision backends.
type Provider interface {
	// Decide sends the conversation plus available tools to the model and
	// returns its next decision.
	Decide(ctx context.Context, req DecisionRequest) (*Decision, error)
	// Name returns the name of this provider.
	Name() string
}
