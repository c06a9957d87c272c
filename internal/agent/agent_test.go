package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentCard(t *testing.T) {
	require.NoError(t, LoadAgentCard())
	require.NotEmpty(t, AgentCardData)

	var card Card
	require.NoError(t, json.Unmarshal(AgentCardData, &card))
	assert.Equal(t, "Startup Discovery Agent", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "startup_discovery", card.Skills[0].ID)
}
