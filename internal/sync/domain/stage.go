package domain

// Stage is a contact's position in the outreach pipeline. Stages are
// ordered and only ever advance.
type Stage string

const (
	StageLead          Stage = "lead"
	StageContacted     Stage = "contacted"
	StageReplied       Stage = "replied"
	StageCallScheduled Stage = "call_scheduled"
	StageCallHeld      Stage = "call_held"
	StageClosed        Stage = "closed"
)

var stageOrder = map[Stage]int{
	StageLead:          0,
	StageContacted:     1,
	StageReplied:       2,
	StageCallScheduled: 3,
	StageCallHeld:      4,
	StageClosed:        5,
}

// IsValid reports whether s is a known pipeline stage.
func (s Stage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Precedes reports whether s comes strictly before other in the
// pipeline. Unknown stages never precede anything.
func (s Stage) Precedes(other Stage) bool {
	a, ok := stageOrder[s]
	if !ok {
		return false
	}
	b, ok := stageOrder[other]
	if !ok {
		return false
	}
	return a < b
}
