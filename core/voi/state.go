package voi

import "fmt"

// State is the stage of a VoI run. A run only moves forward.
type State int

const (
	StateInit State = iota
	StateSurrogateFit
	StatePriorSolved
	StatePosteriorSolving
	StateAggregated
	StateReported
)

var stateNames = [...]string{
	StateInit:             "init",
	StateSurrogateFit:     "surrogate_fit",
	StatePriorSolved:      "prior_solved",
	StatePosteriorSolving: "posterior_solving",
	StateAggregated:       "aggregated",
	StateReported:         "reported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}
