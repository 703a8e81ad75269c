package pipeline

type EventKind string

const (
	EventStart    EventKind = "agent_start"
	EventVerdict  EventKind = "agent_complete"
	EventComplete EventKind = "complete"
)

// Event is one step of a streamed run. Verdict is set for EventVerdict and
// Result for EventComplete.
type Event struct {
	Kind        EventKind `json:"type"`
	EvaluatorID string    `json:"evaluatorId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Verdict     *Verdict  `json:"verdict,omitempty"`
	Result      *Result   `json:"result,omitempty"`
}
