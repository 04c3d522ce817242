package verifier

// Kind names the proof being verified.
type Kind string

const (
	KindEquality  Kind = "equality"
	KindPredicate Kind = "predicate"
)

// Stage is a checkpoint inside a verification.
type Stage int

const (
	// StageParams fires once the T values are rebuilt.
	StageParams Stage = iota
	// StageChallenge fires after the recomputed challenge is compared.
	StageChallenge
	// StageFailed fires when the inputs are structurally unusable.
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageParams:
		return "params"
	case StageChallenge:
		return "challenge"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// Event is what a Hook observes. Accepted is only meaningful at
// StageChallenge; Err only at StageFailed.
type Event struct {
	Kind     Kind
	Stage    Stage
	KeyIDs   []string
	Accepted bool
	Err      error
}

// Hook receives verification checkpoints. Implementations must not block;
// they never influence the result.
type Hook interface {
	Observe(Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(Event)

func (f HookFunc) Observe(e Event) { f(e) }

// NopHook discards every event.
type NopHook struct{}

func (NopHook) Observe(Event) {}

func observe(h Hook, e Event) {
	if h != nil {
		h.Observe(e)
	}
}
