package walker

// Step ceilings and targets used when a policy leaves them unset.
const (
	DefaultDeepSteps     = 1000
	DefaultDirectedSteps = 50
	DefaultTargetTitle   = "Philosophy"
)

// Policy configures the stop predicate and step budget of a walk. Deep and
// directed exploration are both expressed as a Policy over the same state
// machine.
type Policy struct {
	Name string
	// StepBudget caps the number of edges followed.
	StepBudget int
	// TargetTitle ends the walk with Completed when a resolved title matches.
	TargetTitle string
	// TargetDepth ends the walk with Completed once the path holds this many
	// articles. Zero disables it.
	TargetDepth int
	// UseGlobalVisited enables the AlreadyKnown stop against the controller's
	// visited set.
	UseGlobalVisited bool
}

// DeepPolicy explores until a loop, dead end or previously recorded article,
// bounded by a large step ceiling.
func DeepPolicy(maxSteps int) Policy {
	if maxSteps <= 0 {
		maxSteps = DefaultDeepSteps
	}
	return Policy{
		Name:             "deep",
		StepBudget:       maxSteps,
		UseGlobalVisited: true,
	}
}

// DirectedPolicy walks toward target or a fixed depth under a small ceiling.
// With neither a target nor a depth it aims for DefaultTargetTitle.
func DirectedPolicy(target string, depth, maxSteps int) Policy {
	if maxSteps <= 0 {
		maxSteps = DefaultDirectedSteps
	}
	if target == "" && depth <= 0 {
		target = DefaultTargetTitle
	}
	if depth < 0 {
		depth = 0
	}
	return Policy{
		Name:        "directed",
		StepBudget:  maxSteps,
		TargetTitle: target,
		TargetDepth: depth,
	}
}
