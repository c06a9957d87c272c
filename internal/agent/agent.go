// Package agent holds the A2A agent card served at /.well-known/agent.json.
package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed agent.json
var agentCard []byte

// AgentCardData is the validated card, set by LoadAgentCard.
var AgentCardData []byte

// Card is the subset of the agent card the service checks on load.
type Card struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Version string  `json:"version"`
	Skills  []Skill `json:"skills"`
}

type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadAgentCard validates the embedded card and publishes it in AgentCardData.
func LoadAgentCard() error {
	if AgentCardData != nil {
		return nil
	}
	var card Card
	if err := json.Unmarshal(agentCard, &card); err != nil {
		return fmt.Errorf("parse agent card: %w", err)
	}
	if card.Name == "" || len(card.Skills) == 0 {
		return fmt.Errorf("agent card needs a name and at least one skill")
	}
	AgentCardData = agentCard
	return nil
}
