package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallsCommandShape(t *testing.T) {
	require.False(t, callsCmd.Runnable(), "calls is a command group")

	list, _, err := callsCmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, "list", list.Name())
	assert.True(t, list.Runnable())
}
