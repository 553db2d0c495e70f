// Package game drives a playthrough: it sequences each turn from player
// input through the streamed story, the parsed segment and the media that
// follows it, and owns the game state and its save data.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tatianab/adventure-engine/internal/audio"
	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/models"
	"github.com/tatianab/adventure-engine/internal/storage"
)

var (
	ErrWrongPhase        = errors.New("game: not allowed in the current phase")
	ErrTurnInFlight      = errors.New("game: a turn is already in progress")
	ErrUnknownChoice     = errors.New("game: not one of the current choices")
	ErrUnknownDifficulty = errors.New("game: unknown difficulty")
)

// TurnErrorStory replaces the story when a turn fails outright.
const TurnErrorStory = "A powerful magical interference has disrupted your adventure. Please try again."

// Gateway is the remote content provider.
type Gateway interface {
	StartConversation(ctx context.Context, history []models.GameTurn, difficulty models.Difficulty) (engine.Conversation, error)
	GenerateImage(ctx context.Context, prompt string) string
	GenerateSpeech(ctx context.Context, text string) (string, bool)
}

// Speaker plays narration. Only the orchestrator drives it.
type Speaker interface {
	Play(buf *audio.Buffer) error
	Stop()
}

// Options tunes media generation.
type Options struct {
	ImageTimeout  time.Duration
	SpeechTimeout time.Duration
}

// Snapshot is a consistent copy of everything a surface needs to render.
// Version increases with every change; a surface receiving snapshots from
// several goroutines keeps the highest.
type Snapshot struct {
	models.GameState
	Version      uint64
	InFlight     bool
	ImageLoading bool
	Narration    bool
}

// Orchestrator owns the single running game.
type Orchestrator struct {
	gw      Gateway
	store   storage.Store
	speaker Speaker
	opts    Options
	log     zerolog.Logger

	mu           sync.Mutex
	state        models.GameState
	conv         engine.Conversation
	turn         uuid.UUID
	inFlight     bool
	imageLoading bool
	narration    bool
	version      uint64
	subs         map[int]func(Snapshot)
	nextSub      int

	// playMu orders starting narration against stopping it.
	playMu sync.Mutex
	media  sync.WaitGroup
}

func New(gw Gateway, store storage.Store, speaker Speaker, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = time.Minute
	}
	if opts.SpeechTimeout <= 0 {
		opts.SpeechTimeout = time.Minute
	}
	return &Orchestrator{
		gw:        gw,
		store:     store,
		speaker:   speaker,
		opts:      opts,
		log:       log.With().Str("component", "game").Logger(),
		state:     models.GameState{Inventory: []string{}, Phase: models.Initializing},
		narration: true,
		subs:      map[int]func(Snapshot){},
	}
}

// NewGamePrompt is the first prompt of every game.
func NewGamePrompt(d models.Difficulty) string {
	return fmt.Sprintf("Start my adventure in a fantasy world. I am a novice adventurer with no items. The difficulty is %s.", d)
}

// ChoicePrompt is the prompt sent when the player picks a choice.
func ChoicePrompt(choice string) string {
	return `My choice is: "` + choice + `"`
}

// Start restores the saved game if there is a usable one, and otherwise
// moves to difficulty selection. A broken save is discarded, never fatal.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Phase != models.Initializing {
		o.mu.Unlock()
		return ErrWrongPhase
	}
	o.mu.Unlock()

	narration := o.loadNarration(ctx)
	sd := o.loadSave(ctx)

	o.mu.Lock()
	o.narration = narration
	if sd != nil {
		models.ApplySave(&o.state, sd)
		o.state.Phase = models.Playing
		o.log.Info().Int("history", len(sd.History)).Str("difficulty", string(sd.Difficulty)).Msg("restored saved game")
	} else {
		o.state.Phase = models.SelectingDifficulty
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(snap)
	return nil
}

func (o *Orchestrator) loadSave(ctx context.Context) *models.SaveData {
	data, err := o.store.Get(ctx, models.SaveKey)
	if errors.Is(err, storage.ErrNotFound) {
		o.log.Info().Msg("no saved game")
		return nil
	}
	if err != nil {
		o.log.Warn().Err(err).Msg("could not read saved game")
		return nil
	}

	sd, err := models.DecodeSave(data)
	if err != nil {
		o.log.Warn().Err(err).Msg("discarding unreadable saved game")
		if err := o.store.Delete(ctx, models.SaveKey); err != nil {
			o.log.Warn().Err(err).Msg("could not delete saved game")
		}
		return nil
	}
	return sd
}

// BeginGame starts a fresh game at the chosen difficulty and plays its
// opening turn.
func (o *Orchestrator) BeginGame(ctx context.Context, d models.Difficulty) error {
	if !d.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownDifficulty, d)
	}
	return o.advance(ctx, NewGamePrompt(d), func() error {
		if o.state.Phase != models.SelectingDifficulty {
			return ErrWrongPhase
		}
		o.resetLocked()
		o.state.Difficulty = d
		o.state.Phase = models.Playing
		o.log.Info().Str("difficulty", string(d)).Msg("new game")
		return nil
	})
}

// AdvanceTurn plays one turn with prompt as the player's message.
func (o *Orchestrator) AdvanceTurn(ctx context.Context, prompt string) error {
	return o.advance(ctx, prompt, o.checkPlayableLocked)
}

// Choose plays the choice with the given text. The restart choice ends the
// game instead.
func (o *Orchestrator) Choose(ctx context.Context, choice string) error {
	if choice == engine.RestartChoice {
		return o.Restart(ctx)
	}
	return o.advance(ctx, ChoicePrompt(choice), func() error {
		if err := o.checkPlayableLocked(); err != nil {
			return err
		}
		if !o.state.HasChoice(choice) {
			return fmt.Errorf("%w: %q", ErrUnknownChoice, choice)
		}
		return nil
	})
}

func (o *Orchestrator) checkPlayableLocked() error {
	if o.state.Phase != models.Playing {
		return ErrWrongPhase
	}
	if o.inFlight {
		return ErrTurnInFlight
	}
	return nil
}

// Restart abandons the current game: the save, the conversation and the
// history are cleared and the player picks a difficulty again. Results still
// arriving for the abandoned turn are ignored.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Phase != models.Playing {
		o.mu.Unlock()
		return ErrWrongPhase
	}
	o.resetLocked()
	o.state.Phase = models.SelectingDifficulty
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.stopSpeaker()
	o.log.Info().Msg("journey restarted")
	o.publish(snap)

	if err := o.store.Delete(ctx, models.SaveKey); err != nil {
		return fmt.Errorf("clear saved game: %w", err)
	}
	return nil
}

// resetLocked clears everything that belongs to one playthrough.
func (o *Orchestrator) resetLocked() {
	phase := o.state.Phase
	o.state = models.GameState{Inventory: []string{}, Phase: phase}
	o.conv = nil
	o.turn = uuid.Nil
	o.inFlight = false
	o.imageLoading = false
}

// Save writes the game to storage. It reports false without saving while a
// turn is in progress or no game is being played.
func (o *Orchestrator) Save(ctx context.Context) (bool, error) {
	o.mu.Lock()
	if o.inFlight || o.state.Phase != models.Playing {
		o.mu.Unlock()
		return false, nil
	}
	data, err := models.EncodeSave(o.state)
	o.mu.Unlock()
	if err != nil {
		return false, err
	}

	if err := o.store.Set(ctx, models.SaveKey, data); err != nil {
		return false, fmt.Errorf("save game: %w", err)
	}
	o.log.Info().Msg("game saved")
	return true, nil
}

// SetNarration turns narration on or off and remembers the preference.
func (o *Orchestrator) SetNarration(ctx context.Context, on bool) error {
	o.mu.Lock()
	o.narration = on
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if !on {
		o.stopSpeaker()
	}
	o.publish(snap)

	value := []byte("false")
	if on {
		value = []byte("true")
	}
	if err := o.store.Set(ctx, models.NarrationKey, value); err != nil {
		return fmt.Errorf("save narration preference: %w", err)
	}
	return nil
}

// Narration reports whether new turns are narrated.
func (o *Orchestrator) Narration() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.narration
}

func (o *Orchestrator) loadNarration(ctx context.Context) bool {
	data, err := o.store.Get(ctx, models.NarrationKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.log.Warn().Err(err).Msg("could not read narration preference")
		}
		return true
	}
	switch string(data) {
	case "true":
		return true
	case "false":
		return false
	}
	o.log.Warn().Str("value", string(data)).Msg("ignoring malformed narration preference")
	return true
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	o.version++
	return Snapshot{
		GameState:    o.state.Clone(),
		Version:      o.version,
		InFlight:     o.inFlight,
		ImageLoading: o.imageLoading,
		Narration:    o.narration,
	}
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the goroutine that made the change and must not block. The returned
// function unsubscribes.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

func (o *Orchestrator) publish(snap Snapshot) {
	o.mu.Lock()
	subs := make([]func(Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Wait blocks until image and speech requests already started have settled.
func (o *Orchestrator) Wait() {
	o.media.Wait()
}
