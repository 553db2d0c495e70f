package engine

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/adventure-engine/internal/models"
)

func TestSystemInstruction(t *testing.T) {
	for _, d := range models.Difficulties {
		got, err := SystemInstruction(d)
		require.NoError(t, err)
		assert.Contains(t, got, "difficulty is set to '"+string(d)+"'")
		assert.Contains(t, got, artStyle)
		for _, field := range requiredFields {
			assert.Contains(t, got, `"`+field+`"`)
		}
	}
}

func TestToContents(t *testing.T) {
	history := []models.GameTurn{
		{Role: models.RoleUser, Text: "Start"},
		{Role: models.RoleModel, Text: `{"story":"..."}`},
	}
	got := toContents(history)
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("Start")}, got[0].Parts)
	assert.Equal(t, "model", got[1].Role)

	assert.Empty(t, toContents(nil))
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("The forest"), genai.Text(" is dark.")}},
		}},
	}
	assert.Equal(t, "The forest is dark.", responseText(resp))
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}

func TestTurnSchema(t *testing.T) {
	s := turnSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, requiredFields, s.Required)
	for _, field := range requiredFields {
		assert.Contains(t, s.Properties, field)
	}
	action := s.Properties["inventory_update"].Items.Properties["action"]
	assert.Equal(t, []string{"add", "remove"}, action.Enum)
}
