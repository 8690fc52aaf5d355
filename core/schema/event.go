package schema

// Event identifies what triggered a validation pass. Rules declare the
// event they want to run on; the engine matches rule triggers against
// the event of the current pass.
type Event string

const (
	// EventTouch is an explicit user interaction (Field.Touch).
	EventTouch Event = "touch"
	// EventChange is any value mutation (Field.SetValue and Field.Touch).
	EventChange Event = "change"
	// EventDemand is the default trigger: the rule only runs on an
	// explicit Validate call with no event argument.
	EventDemand Event = "demand"
)

// Satisfies reports whether a pass for event e should run a rule whose
// trigger is the given value. A touch pass also satisfies change
// triggers, since every touch mutates the value.
func (e Event) Satisfies(trigger Event) bool {
	if e == trigger {
		return true
	}
	return e == EventTouch && trigger == EventChange
}
