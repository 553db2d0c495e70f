package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/models"
)

// Game is the part of the orchestrator the terminal drives.
type Game interface {
	Snapshot() game.Snapshot
	Subscribe(fn func(game.Snapshot)) func()
	BeginGame(ctx context.Context, d models.Difficulty) error
	Choose(ctx context.Context, choice string) error
	Save(ctx context.Context) (bool, error)
	SetNarration(ctx context.Context, on bool) error
	Restart(ctx context.Context) error
}

type model struct {
	ctx      context.Context
	game     Game
	snap     game.Snapshot
	viewport viewport.Model
	spinner  spinner.Model
	status   string
	err      error
	width    int
	height   int
}

var (
	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1).
			PaddingRight(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))
)

func NewModel(ctx context.Context, g Game) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{
		ctx:     ctx,
		game:    g,
		snap:    g.Snapshot(),
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// snapshotMsg carries a state change from the orchestrator.
type snapshotMsg game.Snapshot

// actionMsg reports the outcome of a player command.
type actionMsg struct {
	status string
	err    error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = storyWidth(msg.Width)
		m.viewport.Height = max(msg.Height-12, 3)
		m.viewport.SetContent(m.renderStory())

	case snapshotMsg:
		// Snapshots are sent from several goroutines; keep the newest.
		if msg.Version <= m.snap.Version {
			return m, nil
		}
		m.snap = game.Snapshot(msg)
		m.viewport.SetContent(m.renderStory())
		if m.snap.InFlight {
			m.viewport.GotoBottom()
		} else {
			m.viewport.GotoTop()
		}

	case actionMsg:
		m.status = msg.status
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	key := msg.String()
	if key == "q" {
		return m, tea.Quit
	}
	m.err = nil
	m.status = ""

	switch m.snap.Phase {
	case models.SelectingDifficulty:
		if i, ok := menuIndex(key, len(models.Difficulties)); ok {
			d := models.Difficulties[i]
			return m, m.run(func(ctx context.Context) actionMsg {
				return actionMsg{err: m.game.BeginGame(ctx, d)}
			})
		}

	case models.Playing:
		if i, ok := menuIndex(key, len(m.snap.Choices)); ok {
			if m.snap.InFlight {
				return m, nil
			}
			choice := m.snap.Choices[i].Text
			return m, m.run(func(ctx context.Context) actionMsg {
				return actionMsg{err: m.game.Choose(ctx, choice)}
			})
		}
		switch key {
		case "s":
			return m, m.run(func(ctx context.Context) actionMsg {
				saved, err := m.game.Save(ctx)
				switch {
				case err != nil:
					return actionMsg{err: err}
				case !saved:
					return actionMsg{status: "Nothing to save right now."}
				}
				return actionMsg{status: "Game saved."}
			})
		case "n":
			on := !m.snap.Narration
			return m, m.run(func(ctx context.Context) actionMsg {
				if err := m.game.SetNarration(ctx, on); err != nil {
					return actionMsg{err: err}
				}
				if on {
					return actionMsg{status: "Narration on."}
				}
				return actionMsg{status: "Narration off."}
			})
		case "r":
			return m, m.run(func(ctx context.Context) actionMsg {
				return actionMsg{err: m.game.Restart(ctx)}
			})
		}
	}
	return m, nil
}

// run performs a blocking game call off the UI goroutine.
func (m model) run(fn func(ctx context.Context) actionMsg) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		msg := fn(ctx)
		if errors.Is(msg.err, game.ErrTurnInFlight) {
			msg = actionMsg{status: "The story is still being told..."}
		}
		return msg
	}
}

// menuIndex maps the keys "1".."9" onto a list of n entries.
func menuIndex(key string, n int) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	i := int(key[0] - '1')
	return i, i < n
}

func (m model) View() string {
	var s string

	switch m.snap.Phase {
	case models.Initializing:
		s = "\n  " + m.spinner.View() + " Opening the storybook...\n"

	case models.SelectingDifficulty:
		var b strings.Builder
		b.WriteString(titleStyle.Render("THE INFINITE ADVENTURE") + "\n\n")
		b.WriteString("Choose your difficulty:\n\n")
		for i, d := range models.Difficulties {
			fmt.Fprintf(&b, "  %d. %s - %s\n", i+1, d, models.DifficultyDescriptions[d])
		}
		s = b.String()

	case models.Playing:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)
		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.renderChoices(),
			"\n"+helpStyle.Render("1-4 choose  s save  n narration  r restart  q quit"),
		)
	}

	switch {
	case m.err != nil:
		s += "\n" + errorStyle.Render("Error: "+m.err.Error())
	case m.status != "":
		s += "\n" + helpStyle.Render(m.status)
	}
	return "\n" + s + "\n"
}

func (m model) renderStory() string {
	story := m.snap.Story
	if story == "" && m.snap.InFlight {
		story = "The storyteller gathers their thoughts..."
	}
	return gameStyle.Width(storyWidth(m.width)).Render(story)
}

func (m model) renderChoices() string {
	if m.snap.InFlight {
		return m.spinner.View() + " The story unfolds..."
	}
	var b strings.Builder
	for i, c := range m.snap.Choices {
		fmt.Fprintf(&b, "%s\n", choiceStyle.Render(fmt.Sprintf("%d. %s", i+1, c.Text)))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m model) renderState() string {
	snap := m.snap

	quest := titleStyle.Render("QUEST") + "\n" + orDefault(snap.Quest, "(none yet)") + "\n\n"

	inventory := titleStyle.Render("INVENTORY") + "\n"
	if len(snap.Inventory) == 0 {
		inventory += "(empty)\n"
	}
	for _, item := range snap.Inventory {
		inventory += "- " + item + "\n"
	}
	inventory += "\n"

	scene := titleStyle.Render("SCENE") + "\n" + sceneStatus(snap) + "\n\n"

	narration := "Narration: off"
	if snap.Narration {
		narration = "Narration: on"
	}
	content := quest + inventory + scene + narration + "\n" + "Difficulty: " + string(snap.Difficulty)

	return stateStyle.Width(int(float64(m.width) * 0.23)).Height(m.viewport.Height).Render(content)
}

func sceneStatus(snap game.Snapshot) string {
	switch {
	case snap.ImageLoading:
		return "painting..."
	case snap.ImageURL == "":
		return "(none)"
	case snap.ImageURL == engine.FallbackImageURL:
		return "lost in the mists"
	}
	return "ready"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func storyWidth(total int) int {
	return int(float64(total) * 0.75)
}

// Run shows the game until the player quits.
func Run(ctx context.Context, g Game) error {
	p := tea.NewProgram(NewModel(ctx, g), tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := g.Subscribe(func(s game.Snapshot) {
		p.Send(snapshotMsg(s))
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
