package agent

// EventKind is one of the 13 event kinds the ReAct loop emits while it runs
// (spec §4.10). Callers drain these to translate them into wire frames or
// to observe the loop in tests.
type EventKind string

// Event kinds (spec §4.10).
const (
	EventRunStarted            EventKind = "RUN_STARTED"
	EventIterationStarted      EventKind = "ITERATION_STARTED"
	EventLLMRequestStarted     EventKind = "LLM_REQUEST_STARTED"
	EventLLMResponseChunk      EventKind = "LLM_RESPONSE_CHUNK"
	EventLLMResponseCompleted  EventKind = "LLM_RESPONSE_COMPLETED"
	EventToolCallsDetected     EventKind = "TOOL_CALLS_DETECTED"
	EventToolExecutionStarted  EventKind = "TOOL_EXECUTION_STARTED"
	EventToolExecutionComplete EventKind = "TOOL_EXECUTION_COMPLETED"
	EventToolExecutionFailed   EventKind = "TOOL_EXECUTION_FAILED"
	EventMessageAdded          EventKind = "MESSAGE_ADDED"
	EventIterationCompleted    EventKind = "ITERATION_COMPLETED"
	EventRunCompleted          EventKind = "RUN_COMPLETED"
	EventRunFailed             EventKind = "RUN_FAILED"
)

// Event is one item of the loop's event stream. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind        EventKind
	Iteration   int
	Text        string
	ToolCallID  string
	ToolName    string
	ToolArgs    string
	ToolResult  any
	ToolSuccess bool
	Err         error
}
