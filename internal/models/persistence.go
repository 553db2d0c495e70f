package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Keys under which the game persists its data.
const (
	SaveKey      = "save-data"
	NarrationKey = "tts-preference"
)

// SaveData is the persisted save document.
type SaveData struct {
	Quest      string     `json:"quest"`
	Inventory  []string   `json:"inventory"`
	Story      string     `json:"currentStory"`
	ImageURL   string     `json:"imageUrl"`
	Choices    []Choice   `json:"choices"`
	History    []GameTurn `json:"gameHistory"`
	Difficulty Difficulty `json:"difficulty"`
}

// EncodeSave serializes the persistable part of a game state.
func EncodeSave(s GameState) ([]byte, error) {
	sd := SaveData{
		Quest:      s.Quest,
		Inventory:  s.Inventory,
		Story:      s.Story,
		ImageURL:   s.ImageURL,
		Choices:    s.Choices,
		History:    s.History,
		Difficulty: s.Difficulty,
	}
	return json.MarshalIndent(sd, "", "  ")
}

// DecodeSave parses a save document and rejects saves a game cannot resume from.
func DecodeSave(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("decode save: %w", err)
	}
	if err := sd.validate(); err != nil {
		return nil, fmt.Errorf("invalid save: %w", err)
	}
	// Ensure slices are never nil after load.
	if sd.Inventory == nil {
		sd.Inventory = []string{}
	}
	sd.Inventory = uniqueItems(sd.Inventory)
	if sd.History == nil {
		sd.History = []GameTurn{}
	}
	return &sd, nil
}

func (sd *SaveData) validate() error {
	if !sd.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", sd.Difficulty)
	}
	if len(sd.Choices) == 0 {
		return errors.New("no choices to resume from")
	}
	for i, turn := range sd.History {
		if turn.Role != RoleUser && turn.Role != RoleModel {
			return fmt.Errorf("history entry %d has role %q", i, turn.Role)
		}
	}
	return nil
}

// ApplySave restores saved data onto a state. The phase is left untouched.
func ApplySave(s *GameState, sd *SaveData) {
	s.Quest = sd.Quest
	s.Inventory = sd.Inventory
	s.Story = sd.Story
	s.ImageURL = sd.ImageURL
	s.Choices = sd.Choices
	s.History = sd.History
	s.Difficulty = sd.Difficulty
}

// uniqueItems drops repeated item names, keeping the first of each.
func uniqueItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}
