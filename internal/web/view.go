package web

import (
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/models"
)

// stateView is the JSON form of a snapshot sent to browsers.
type stateView struct {
	Type         string            `json:"type"`
	Version      uint64            `json:"version"`
	Phase        string            `json:"phase"`
	Difficulty   models.Difficulty `json:"difficulty,omitempty"`
	Quest        string            `json:"quest"`
	Inventory    []string          `json:"inventory"`
	Story        string            `json:"story"`
	ImageURL     string            `json:"imageUrl"`
	Choices      []string          `json:"choices"`
	InFlight     bool              `json:"inFlight"`
	ImageLoading bool              `json:"imageLoading"`
	Narration    bool              `json:"narration"`
}

func newStateView(s game.Snapshot) stateView {
	v := stateView{
		Type:         "state",
		Version:      s.Version,
		Phase:        s.Phase.String(),
		Difficulty:   s.Difficulty,
		Quest:        s.Quest,
		Inventory:    s.Inventory,
		Story:        s.Story,
		ImageURL:     s.ImageURL,
		Choices:      make([]string, 0, len(s.Choices)),
		InFlight:     s.InFlight,
		ImageLoading: s.ImageLoading,
		Narration:    s.Narration,
	}
	if v.Inventory == nil {
		v.Inventory = []string{}
	}
	for _, c := range s.Choices {
		v.Choices = append(v.Choices, c.Text)
	}
	return v
}
