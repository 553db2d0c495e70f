package game

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tatianab/adventure-engine/internal/audio"
	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/inventory"
	"github.com/tatianab/adventure-engine/internal/models"
)

// turn is what a running turn needs to know about the game it started in.
type turn struct {
	id         uuid.UUID
	conv       engine.Conversation
	prior      []models.GameTurn
	difficulty models.Difficulty
}

// advance runs check under the lock and, if it passes, plays a turn for prompt.
// Failures after the turn has started are reported in the game state, not as
// an error.
func (o *Orchestrator) advance(ctx context.Context, prompt string, check func() error) error {
	o.mu.Lock()
	if err := check(); err != nil {
		o.mu.Unlock()
		return err
	}
	t := turn{
		id:         uuid.New(),
		conv:       o.conv,
		prior:      slices.Clone(o.state.History),
		difficulty: o.state.Difficulty,
	}
	o.turn = t.id
	o.inFlight = true
	// Media still pending for an earlier turn will be dropped as stale.
	o.imageLoading = false
	o.state.History = append(o.state.History, models.GameTurn{Role: models.RoleUser, Text: prompt})
	o.state.Story = ""
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(snap)
	o.runTurn(ctx, t, prompt)
	return nil
}

func (o *Orchestrator) runTurn(ctx context.Context, t turn, prompt string) {
	log := o.log.With().Str("turn", t.id.String()).Logger()
	defer o.finishTurn(t.id)

	conv := t.conv
	if conv == nil {
		c, err := o.gw.StartConversation(ctx, t.prior, t.difficulty)
		if err != nil {
			log.Error().Err(err).Msg("could not start conversation")
			o.failTurn(t.id)
			return
		}
		if !o.update(t.id, func() { o.conv = c }) {
			return
		}
		conv = c
	}

	var full strings.Builder
	for chunk, err := range conv.Send(ctx, prompt) {
		if err != nil {
			log.Error().Err(err).Msg("story stream failed")
			o.failTurn(t.id)
			return
		}
		full.WriteString(chunk)
		text := full.String()
		if !o.update(t.id, func() { o.state.Story = text }) {
			log.Debug().Msg("abandoned turn, dropping stream")
			return
		}
	}

	resp, ok := engine.ParseResponse(full.String())
	if !ok {
		log.Warn().Int("length", full.Len()).Msg("storyteller response did not parse")
		if o.update(t.id, func() {
			o.state.Story = resp.Story
			o.state.Quest = resp.QuestUpdate
			o.state.Choices = resp.Choices
		}) {
			o.stopSpeaker()
			o.generateMedia(ctx, t.id, resp.ImagePrompt, "")
		}
		return
	}

	segment, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("could not serialize segment")
		o.failTurn(t.id)
		return
	}
	applied := o.update(t.id, func() {
		o.state.History = append(o.state.History, models.GameTurn{Role: models.RoleModel, Text: string(segment)})
		o.state.Story = resp.Story
		o.state.Quest = resp.QuestUpdate
		o.state.Choices = resp.Choices
		o.state.Inventory = inventory.Reconcile(o.state.Inventory, resp.InventoryUpdate)
	})
	if !applied {
		return
	}
	log.Info().Int("choices", len(resp.Choices)).Int("inventory_updates", len(resp.InventoryUpdate)).Msg("turn complete")
	o.generateMedia(ctx, t.id, resp.ImagePrompt, resp.Story)
}

// update applies fn if id is still the current turn and publishes the result.
func (o *Orchestrator) update(id uuid.UUID, fn func()) bool {
	o.mu.Lock()
	if o.turn != id {
		o.mu.Unlock()
		return false
	}
	fn()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(snap)
	return true
}

// failTurn shows the in-world error message and leaves only the restart choice.
func (o *Orchestrator) failTurn(id uuid.UUID) {
	if o.update(id, func() {
		o.state.Story = TurnErrorStory
		o.state.Choices = []models.Choice{{Text: engine.RestartChoice}}
	}) {
		o.stopSpeaker()
	}
}

func (o *Orchestrator) finishTurn(id uuid.UUID) {
	o.update(id, func() { o.inFlight = false })
}

// generateMedia requests the scene illustration and, when story is not empty
// and narration is on, its narration. Both run in the background; results
// for a turn that is no longer current are dropped.
func (o *Orchestrator) generateMedia(ctx context.Context, id uuid.UUID, imagePrompt, story string) {
	ctx = context.WithoutCancel(ctx)

	var narrate bool
	if !o.update(id, func() {
		o.imageLoading = true
		narrate = o.narration && story != ""
	}) {
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		url := o.illustrate(ctx, imagePrompt)
		o.update(id, func() {
			o.state.ImageURL = url
			o.imageLoading = false
		})
		return nil
	})
	if narrate {
		g.Go(func() error {
			o.narrate(ctx, id, story)
			return nil
		})
	}

	o.media.Add(1)
	go func() {
		defer o.media.Done()
		g.Wait()
	}()
}

// illustrate never fails: a broken request yields the fallback image.
func (o *Orchestrator) illustrate(ctx context.Context, prompt string) (url string) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.ImageTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("image generation panicked")
			url = engine.FallbackImageURL
		}
	}()

	url = o.gw.GenerateImage(ctx, prompt)
	if url == "" {
		url = engine.FallbackImageURL
	}
	return url
}

func (o *Orchestrator) narrate(ctx context.Context, id uuid.UUID, story string) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.SpeechTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Msg("narration panicked")
		}
	}()

	payload, ok := o.gw.GenerateSpeech(ctx, story)
	if !ok {
		o.log.Debug().Msg("no narration for this turn")
		return
	}
	buf, err := audio.DecodeBase64PCM(payload)
	if err != nil {
		o.log.Warn().Err(err).Msg("could not decode narration")
		return
	}

	o.playMu.Lock()
	defer o.playMu.Unlock()
	o.mu.Lock()
	current := o.turn == id && o.narration
	o.mu.Unlock()
	if !current {
		return
	}
	if err := o.speaker.Play(buf); err != nil {
		o.log.Warn().Err(err).Msg("could not play narration")
	}
}

// stopSpeaker stops narration. It waits for a narration that is being
// started so that one cannot begin after the stop.
func (o *Orchestrator) stopSpeaker() {
	o.playMu.Lock()
	defer o.playMu.Unlock()
	o.speaker.Stop()
}
