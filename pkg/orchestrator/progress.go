package orchestrator

// Stage is one of the three totally-ordered progress stages an agentic
// session reports (Started -> Analysing -> Complete|Error).
type Stage string

const (
	StageStarted   Stage = "started"
	StageAnalysing Stage = "analysing"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// Notification mirrors the wire shape of an MCP-style progress event:
// {method: "notifications/progress", params: {...}}.
type Notification struct {
	Method string           `json:"method"`
	Params NotificationBody `json:"params"`
}

// NotificationBody carries the progress payload itself.
type NotificationBody struct {
	ProgressToken string `json:"progress_token"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total"`
	Message       string  `json:"message,omitempty"`
}

// Sink receives progress notifications as an agentic session advances. A
// nil Sink is valid; notifications are simply dropped.
type Sink func(Notification)

func (s Sink) emit(token string, progress float64, message string) {
	if s == nil {
		return
	}
	s(Notification{
		Method: "notifications/progress",
		Params: NotificationBody{
			ProgressToken: token,
			Progress:      progress,
			Total:         1.0,
			Message:       message,
		},
	})
}
