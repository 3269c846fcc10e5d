package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	lines := []string{
		"Monday (3/2): 09:00-10:00; 11:00-22:00 GMT",
		"Tuesday (3/3): 09:00-22:00 GMT",
	}

	t.Run("splices availability into the placeholder", func(t *testing.T) {
		got, err := Compose("Hi Jamie,\n\nI'm free:\n{{availability}}\n\nBest", lines)
		require.NoError(t, err)
		assert.Contains(t, got, "Monday (3/2): 09:00-10:00; 11:00-22:00 GMT")
		assert.Contains(t, got, "Tuesday (3/3): 09:00-22:00 GMT")
		assert.NotContains(t, got, Placeholder)
	})

	t.Run("fails when the placeholder is absent", func(t *testing.T) {
		_, err := Compose("Hi Jamie, when are you free?", lines)
		assert.ErrorIs(t, err, ErrNoPlaceholder)
	})

	t.Run("empty availability yields an explicit marker", func(t *testing.T) {
		got, err := Compose("{{availability}}", nil)
		require.NoError(t, err)
		assert.Equal(t, "(no free slots in the coming days)", got)
	})
}
