package models

import (
	"fmt"
	"slices"
	"strings"
)

// Difficulty is chosen once per game and shapes how punishing the story is.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Normal Difficulty = "Normal"
	Hard   Difficulty = "Hard"
)

// Difficulties lists the selectable difficulties in menu order.
var Difficulties = []Difficulty{Easy, Normal, Hard}

// DifficultyDescriptions are shown next to each difficulty in the selection menu.
var DifficultyDescriptions = map[Difficulty]string{
	Easy:   "A relaxed journey with plentiful resources and forgiving challenges.",
	Normal: "A balanced adventure with moderate challenges and rewards.",
	Hard:   "A punishing quest where resources are scarce and every choice matters.",
}

// ParseDifficulty accepts a difficulty name in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	return slices.Contains(Difficulties, d)
}

// Phase drives which interaction surface is active.
type Phase int

const (
	Initializing Phase = iota
	SelectingDifficulty
	Playing
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case SelectingDifficulty:
		return "selecting_difficulty"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Choice is a player-selectable action.
type Choice struct {
	Text string `json:"text"`
}

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// InventoryUpdate adds or removes a single named item.
type InventoryUpdate struct {
	Action string `json:"action"` // "add" or "remove"
	Item   string `json:"item"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// GameTurn is one entry of the conversation transcript.
type GameTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// TurnResponse is the structured segment the storyteller returns for one turn.
type TurnResponse struct {
	Story           string            `json:"story"`
	ImagePrompt     string            `json:"image_prompt"`
	Choices         []Choice          `json:"choices"`
	InventoryUpdate []InventoryUpdate `json:"inventory_update"`
	QuestUpdate     string            `json:"quest_update"`
}

// GameState is the observable state of the single running game.
type GameState struct {
	Quest      string
	Inventory  []string
	Story      string
	ImageURL   string
	Choices    []Choice
	Difficulty Difficulty
	History    []GameTurn
	Phase      Phase
}

// Clone returns a copy that shares no slices with s.
func (s GameState) Clone() GameState {
	c := s
	c.Inventory = slices.Clone(s.Inventory)
	c.Choices = slices.Clone(s.Choices)
	c.History = slices.Clone(s.History)
	return c
}

// HasChoice reports whether text matches one of the current choices.
func (s GameState) HasChoice(text string) bool {
	return slices.ContainsFunc(s.Choices, func(c Choice) bool { return c.Text == text })
}
