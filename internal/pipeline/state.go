package pipeline

import "fmt"

// State is a stage of one pipeline run.
type State int

const (
	BronzeLoading State = iota
	SilverTransforming
	SilverLoading
	GoldMaterializing
	Done
	// Failed is terminal and reachable only from the Silver stages.
	Failed
)

func (s State) String() string {
	switch s {
	case BronzeLoading:
		return "BronzeLoading"
	case SilverTransforming:
		return "SilverTransforming"
	case SilverLoading:
		return "SilverLoading"
	case GoldMaterializing:
		return "GoldMaterializing"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == Done || s == Failed }

// transitions lists the legal moves.
var transitions = map[State][]State{
	BronzeLoading:      {SilverTransforming},
	SilverTransforming: {SilverLoading, Failed},
	SilverLoading:      {GoldMaterializing, Failed},
	GoldMaterializing:  {Done},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
