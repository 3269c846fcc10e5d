package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagePrecedes(t *testing.T) {
	tests := []struct {
		name string
		from Stage
		to   Stage
		want bool
	}{
		{"lead precedes call_scheduled", StageLead, StageCallScheduled, true},
		{"contacted precedes call_scheduled", StageContacted, StageCallScheduled, true},
		{"replied precedes call_scheduled", StageReplied, StageCallScheduled, true},
		{"call_scheduled does not precede itself", StageCallScheduled, StageCallScheduled, false},
		{"call_held does not precede call_scheduled", StageCallHeld, StageCallScheduled, false},
		{"closed does not precede call_scheduled", StageClosed, StageCallScheduled, false},
		{"unknown stage never precedes", Stage("archived"), StageCallScheduled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Precedes(tt.to))
		})
	}
}

func TestStageIsValid(t *testing.T) {
	for _, s := range []Stage{StageLead, StageContacted, StageReplied, StageCallScheduled, StageCallHeld, StageClosed} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, Stage("archived").IsValid())
	assert.False(t, Stage("").IsValid())
}
