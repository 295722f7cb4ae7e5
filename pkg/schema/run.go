package schema

// RunState represents the lifecycle state of a workflow run.
type RunState string

const (
	RunStateReady     RunState = "ready"
	RunStateRunning   RunState = "running"
	RunStateSuspended RunState = "suspended"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

// TriggerMode identifies how a run was started. Prompt handlers use it to
// decide between interactive prompting and context substitution.
type TriggerMode string

const (
	TriggerModePanel  TriggerMode = "panel"
	TriggerModeHotkey TriggerMode = "hotkey"
	TriggerModeEvent  TriggerMode = "event"
)

// EventType enumerates document-store events consulted by the trigger matcher.
type EventType string

const (
	EventCreate   EventType = "create"
	EventModify   EventType = "modify"
	EventDelete   EventType = "delete"
	EventRename   EventType = "rename"
	EventFileOpen EventType = "file-open"
)

// Reserved variable names injected into the initial scope of event-triggered
// runs.
const (
	VarEventType        = "__eventType__"
	VarEventFilePath    = "__eventFilePath__"
	VarEventFile        = "__eventFile__"
	VarEventFileContent = "__eventFileContent__"
	VarEventOldPath     = "__eventOldPath__"
	VarScheduledAt      = "__scheduledAt__"
)

// Reserved variable names seeded into hotkey-triggered runs, describing the
// document and selection active in the host editor when the hotkey fired.
const (
	VarActiveFilePath  = "__activeFilePath__"
	VarActiveSelection = "__activeSelection__"
)
