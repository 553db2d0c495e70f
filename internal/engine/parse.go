package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tatianab/adventure-engine/internal/models"
)

// RestartChoice is the single choice offered after anything goes wrong.
const RestartChoice = "Restart my journey"

const artStyle = "in a vibrant, detailed, fantasy digital painting art style, high resolution, epic composition."

// FallbackResponse is the segment used in place of a response that cannot be parsed.
func FallbackResponse() models.TurnResponse {
	return models.TurnResponse{
		Story:           "The ancient magic of the world falters, and the path ahead becomes unclear. Please try making a different choice or starting a new adventure.",
		ImagePrompt:     "A mysterious swirling vortex of colors, representing a glitch in reality. " + artStyle,
		Choices:         []models.Choice{{Text: RestartChoice}},
		InventoryUpdate: []models.InventoryUpdate{},
		QuestUpdate:     "Survive the cosmic error.",
	}
}

var requiredFields = []string{"story", "image_prompt", "choices", "inventory_update", "quest_update"}

// ParseResponse extracts a turn segment from the storyteller's raw output,
// which may be wrapped in a markdown code fence. It reports false and returns
// FallbackResponse when the text is not a complete segment.
func ParseResponse(text string) (models.TurnResponse, bool) {
	resp, err := decodeResponse(stripFences(text))
	if err != nil {
		return FallbackResponse(), false
	}
	return resp, true
}

func stripFences(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func decodeResponse(clean string) (models.TurnResponse, error) {
	var resp models.TurnResponse

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return resp, err
	}
	for _, name := range requiredFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(raw, []byte("null")) {
			return resp, fmt.Errorf("missing field %q", name)
		}
	}

	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return resp, err
	}
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("no choices")
	}
	for i, c := range resp.Choices {
		if strings.TrimSpace(c.Text) == "" {
			return resp, fmt.Errorf("choice %d is empty", i)
		}
	}
	for i, u := range resp.InventoryUpdate {
		if u.Action != models.ActionAdd && u.Action != models.ActionRemove {
			return resp, fmt.Errorf("inventory update %d has action %q", i, u.Action)
		}
	}
	return resp, nil
}
