package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/models"
)

type fakeGame struct {
	snap      game.Snapshot
	began     []models.Difficulty
	chosen    []string
	narration []bool
	saves     int
	restarts  int
	chooseErr error
}

func (g *fakeGame) Snapshot() game.Snapshot { return g.snap }
func (g *fakeGame) Subscribe(func(game.Snapshot)) func() { return func() {} }
func (g *fakeGame) Restart(context.Context) error { g.restarts++; return nil }
func (g *fakeGame) Save(context.Context) (bool, error) { g.saves++; return true, nil }
func (g *fakeGame) BeginGame(_ context.Context, d models.Difficulty) error {
	g.began = append(g.began, d)
	return nil
}
func (g *fakeGame) Choose(_ context.Context, c string) error {
	g.chosen = append(g.chosen, c)
	return g.chooseErr
}
func (g *fakeGame) SetNarration(_ context.Context, on bool) error {
	g.narration = append(g.narration, on)
	return nil
}

func playing() game.Snapshot {
	return game.Snapshot{
		GameState: models.GameState{
			Quest:      "Find the lost lantern",
			Inventory:  []string{"torch"},
			Story:      "The forest is dark.",
			Choices:    []models.Choice{{Text: "Light the torch"}, {Text: "Climb a tree"}},
			Difficulty: models.Normal,
			Phase:      models.Playing,
		},
		Version:   5,
		Narration: true,
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds a key to m and runs the resulting command, if any.
func press(t *testing.T, m model, k string) (model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	if am, ok := msg.(actionMsg); ok {
		next, _ = m.Update(am)
		m = next.(model)
	}
	return m, msg
}

func TestMenuIndex(t *testing.T) {
	tests := []struct {
		key    string
		n      int
		want   int
		wantOK bool
	}{
		{"1", 3, 0, true},
		{"3", 3, 2, true},
		{"4", 3, 3, false},
		{"0", 3, 0, false},
		{"a", 3, 0, false},
		{"12", 3, 0, false},
	}
	for _, tt := range tests {
		got, ok := menuIndex(tt.key, tt.n)
		assert.Equal(t, tt.wantOK, ok, tt.key)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, tt.key)
		}
	}
}

func TestDifficultyMenu(t *testing.T) {
	g := &fakeGame{snap: game.Snapshot{GameState: models.GameState{Phase: models.SelectingDifficulty}}}
	m := NewModel(context.Background(), g)

	view := m.View()
	for _, d := range models.Difficulties {
		assert.Contains(t, view, string(d))
	}

	press(t, m, "3")
	assert.Equal(t, []models.Difficulty{models.Hard}, g.began)
}

func TestChooseByNumber(t *testing.T) {
	g := &fakeGame{snap: playing()}
	m := NewModel(context.Background(), g)

	press(t, m, "2")
	assert.Equal(t, []string{"Climb a tree"}, g.chosen)

	_, msg := press(t, m, "3")
	assert.Nil(t, msg, "no third choice")
	assert.Len(t, g.chosen, 1)
}

func TestChoicesIgnoredWhileInFlight(t *testing.T) {
	snap := playing()
	snap.InFlight = true
	g := &fakeGame{snap: snap}
	m := NewModel(context.Background(), g)

	press(t, m, "1")
	assert.Empty(t, g.chosen)
	assert.NotContains(t, m.View(), "Light the torch")
}

func TestTurnInFlightBecomesStatus(t *testing.T) {
	g := &fakeGame{snap: playing(), chooseErr: game.ErrTurnInFlight}
	m := NewModel(context.Background(), g)

	m, _ = press(t, m, "1")
	assert.NoError(t, m.err)
	assert.Contains(t, m.status, "still being told")
}

func TestCommandKeys(t *testing.T) {
	g := &fakeGame{snap: playing()}
	m := NewModel(context.Background(), g)

	m, _ = press(t, m, "s")
	assert.Equal(t, 1, g.saves)
	assert.Equal(t, "Game saved.", m.status)

	m, _ = press(t, m, "n")
	assert.Equal(t, []bool{false}, g.narration)
	assert.Equal(t, "Narration off.", m.status)

	press(t, m, "r")
	assert.Equal(t, 1, g.restarts)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSnapshotOrdering(t *testing.T) {
	g := &fakeGame{snap: playing()}
	m := NewModel(context.Background(), g)

	newer := playing()
	newer.Version = 7
	newer.Story = "A wolf howls."
	next, _ := m.Update(snapshotMsg(newer))
	m = next.(model)

	older := playing()
	older.Version = 6
	older.Story = "stale"
	next, _ = m.Update(snapshotMsg(older))
	m = next.(model)

	assert.Equal(t, "A wolf howls.", m.snap.Story)
}

func TestSidebar(t *testing.T) {
	snap := playing()
	snap.ImageURL = engine.FallbackImageURL
	m := NewModel(context.Background(), &fakeGame{snap: snap})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(model)

	view := m.View()
	for _, want := range []string{"QUEST", "Find the lost lantern", "INVENTORY", "torch", "lost in the mists", "Narration: on"} {
		assert.True(t, strings.Contains(view, want), "view missing %q", want)
	}
}
