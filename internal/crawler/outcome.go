package crawler

import "fmt"

// OutcomeKind tags the way a walk terminated.
type OutcomeKind string

// Walk outcomes. Every finished walk yields exactly one of these.
const (
	OutcomeCompleted        OutcomeKind = "completed"
	OutcomeDeadEnd          OutcomeKind = "dead_end"
	OutcomeLoopDetected     OutcomeKind = "loop_detected"
	OutcomeStepLimitReached OutcomeKind = "step_limit_reached"
	OutcomeAlreadyKnown     OutcomeKind = "already_known"
)

// OutcomeKinds lists every kind in reporting order.
var OutcomeKinds = []OutcomeKind{
	OutcomeCompleted,
	OutcomeDeadEnd,
	OutcomeLoopDetected,
	OutcomeStepLimitReached,
	OutcomeAlreadyKnown,
}

// Outcome is the tagged result of a walk. Steps always equals the number of
// edges in the paired Path. CycleStart and Cycle are only set for
// OutcomeLoopDetected; for OutcomeAlreadyKnown, Steps is the index at which
// the known article was appended.
type Outcome struct {
	Kind       OutcomeKind  `json:"kind"`
	Steps      int          `json:"steps"`
	CycleStart *ArticleRef  `json:"cycle_start,omitempty"`
	Cycle      []ArticleRef `json:"cycle,omitempty"`
}

// Completed reports that the walk reached its target.
func Completed(steps int) Outcome {
	return Outcome{Kind: OutcomeCompleted, Steps: steps}
}

// DeadEnd reports that the tail article had no qualifying link.
func DeadEnd(steps int) Outcome {
	return Outcome{Kind: OutcomeDeadEnd, Steps: steps}
}

// LoopDetected reports that the next link pointed back into the path. cycle is
// the slice of the path from the first occurrence of the repeated article to
// the tail; its first element is the cycle start.
func LoopDetected(steps int, cycle []ArticleRef) Outcome {
	out := Outcome{Kind: OutcomeLoopDetected, Steps: steps}
	if len(cycle) > 0 {
		start := cycle[0]
		out.CycleStart = &start
		out.Cycle = append([]ArticleRef(nil), cycle...)
	}
	return out
}

// StepLimitReached reports that the step budget ran out.
func StepLimitReached(steps int) Outcome {
	return Outcome{Kind: OutcomeStepLimitReached, Steps: steps}
}

// AlreadyKnown reports that the walk joined a previously recorded article at atStep.
func AlreadyKnown(atStep int) Outcome {
	return Outcome{Kind: OutcomeAlreadyKnown, Steps: atStep}
}

// Succeeded reports whether the walk reached its target.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeCompleted
}

func (o Outcome) String() string {
	if o.Kind == OutcomeLoopDetected && o.CycleStart != nil {
		return fmt.Sprintf("%s(steps=%d, cycle_start=%q)", o.Kind, o.Steps, o.CycleStart.DisplayTitle())
	}
	return fmt.Sprintf("%s(steps=%d)", o.Kind, o.Steps)
}
