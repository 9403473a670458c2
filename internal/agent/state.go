package agent

import "fmt"

// Step is one state of the turn state machine. A turn always starts at
// StepLoadContext and finishes at StepEnd:
//
//	LoadContext -> Decide -> {ExecuteTools -> Decide}* -> {Observe} -> End
//
// The transitions are the switch inside RunTurn in orchestrator.go; there is
// no framework routing involved, just this enumeration and a loop.
type Step int

const (
	StepLoadContext Step = iota
	StepDecide
	StepExecuteTools
	StepObserve
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepLoadContext:
		return "load_context"
	case StepDecide:
		return "decide"
	case StepExecuteTools:
		return "execute_tools"
	case StepObserve:
		return "observe"
	case StepEnd:
		return "end"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Config controls one orchestrator instance.
type Config struct {
	// Model passed to the decision provider.
	Model string
	// Temperature is passed through opaquely to the provider.
	Temperature float64
	// EnableObserver gates the Observe transition.
	EnableObserver bool
	// MaxDecisionSteps bounds the tool-call loop. When the final allowed
	// decision still requests tools, the turn ends with a substitute
	// message instead of executing them.
	MaxDecisionSteps int
	// DecisionTimeout bounds each model invocation.
	DecisionTimeout int // seconds; 0 means defaultDecisionTimeout
}

// TurnResult is what one completed turn hands back to the caller.
type TurnResult struct {
	ThreadID string `json:"thread_id"`
	Reply    string `json:"reply"`
	// Decisions is how many model invocations the turn used.
	Decisions int `json:"decisions"`
	// ToolCalls is how many tool executions the turn performed.
	ToolCalls int `json:"tool_calls"`
	// Observed reports whether the observer step ran.
	Observed bool `json:"observed"`
}

// Messages the agent substitutes when it cannot answer normally.
const (
	budgetExhaustedMessage = "Sorry, I could not complete your request within the allowed number of steps. Please try rephrasing your question, or ask to be connected with a human agent."
	decisionFailedMessage  = "Sorry, something went wrong while processing your message. Please try again in a moment, or ask to be connected with a human agent."
)
