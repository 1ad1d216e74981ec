package pipeline

// State is a position in the validation state machine.
//
//	RuleCheck --critical--> Done
//	RuleCheck ------------> SemanticCheck --> Aggregate --> Done
//
// A semantic failure still moves to Aggregate, with the fallback flag set.
type State int

const (
	StateRuleCheck State = iota
	StateSemanticCheck
	StateAggregate
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRuleCheck:
		return "rule_check"
	case StateSemanticCheck:
		return "semantic_check"
	case StateAggregate:
		return "aggregate"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// next returns the state that follows s for the given run.
func next(s State, r *run) State {
	switch s {
	case StateRuleCheck:
		if r.rules.Critical {
			return StateDone
		}
		return StateSemanticCheck
	case StateSemanticCheck:
		return StateAggregate
	default:
		return StateDone
	}
}
