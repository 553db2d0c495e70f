package engine

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"iter"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	media "google.golang.org/genai"

	"github.com/tatianab/adventure-engine/internal/models"
)

//go:embed prompts/system_instruction.txt
var systemInstructionPrompt string

var systemInstructionTmpl = template.Must(template.New("system_instruction").Parse(systemInstructionPrompt))

// Options names the models used for each capability.
type Options struct {
	StoryModel  string
	ImageModel  string
	SpeechModel string
	Voice       string
}

// Engine is the gateway to Gemini: a streaming storyteller chat plus
// image and speech generation.
type Engine struct {
	client *genai.Client
	media  *media.Client
	opts   Options
	log    zerolog.Logger
}

// Conversation is a stateful storyteller session that keeps prior turns as context.
type Conversation interface {
	// Send streams the storyteller's reply to prompt as text increments.
	Send(ctx context.Context, prompt string) iter.Seq2[string, error]
}

func NewEngine(ctx context.Context, apiKey string, opts Options, log zerolog.Logger) (*Engine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	mediaClient, err := media.NewClient(ctx, &media.ClientConfig{
		APIKey:  apiKey,
		Backend: media.BackendGeminiAPI,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Engine{
		client: client,
		media:  mediaClient,
		opts:   opts,
		log:    log.With().Str("component", "engine").Logger(),
	}, nil
}

func (e *Engine) Close() {
	e.client.Close()
}

// StartConversation opens a storyteller chat seeded with history, so a game
// restored from a save picks up where it left off.
func (e *Engine) StartConversation(ctx context.Context, history []models.GameTurn, difficulty models.Difficulty) (Conversation, error) {
	instruction, err := SystemInstruction(difficulty)
	if err != nil {
		return nil, err
	}

	model := e.client.GenerativeModel(e.opts.StoryModel)
	model.SystemInstruction = genai.NewUserContent(genai.Text(instruction))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = turnSchema()

	cs := model.StartChat()
	cs.History = toContents(history)

	e.log.Debug().Int("history", len(history)).Str("difficulty", string(difficulty)).Msg("conversation started")
	return &chat{session: cs}, nil
}

// SystemInstruction renders the storyteller's instructions for a difficulty.
func SystemInstruction(difficulty models.Difficulty) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Difficulty models.Difficulty
		ArtStyle   string
	}{
		Difficulty: difficulty,
		ArtStyle:   artStyle,
	}
	if err := systemInstructionTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system instruction: %w", err)
	}
	return buf.String(), nil
}

func toContents(history []models.GameTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return contents
}

func turnSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"story":        str("The next paragraph of the story, ending right before a decision point."),
			"image_prompt": str("A detailed prompt for an image generation model depicting this scene."),
			"choices": {
				Type:        genai.TypeArray,
				Description: "An array of 2 to 4 choices for the player to make.",
				Items: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{"text": str("A short, actionable choice.")},
					Required:   []string{"text"},
				},
			},
			"inventory_update": {
				Type:        genai.TypeArray,
				Description: "Items to add or remove from the player's inventory. Can be empty.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"action": {
							Type:   genai.TypeString,
							Format: "enum",
							Enum:   []string{models.ActionAdd, models.ActionRemove},
						},
						"item": str("The name of the item."),
					},
					Required: []string{"action", "item"},
				},
			},
			"quest_update": str("A brief update to the player's current quest."),
		},
		Required: requiredFields,
	}
}

type chat struct {
	session *genai.ChatSession
}

func (c *chat) Send(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it := c.session.SendMessageStream(ctx, genai.Text(prompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text string
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			}
		}
	}
	return text
}
