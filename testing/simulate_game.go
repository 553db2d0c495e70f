package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tatianab/adventure-engine/internal/audio"
	"github.com/tatianab/adventure-engine/internal/config"
	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/models"
	"github.com/tatianab/adventure-engine/internal/storage"
)

const maxTurns = 10

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey, engine.Options{
		StoryModel:  cfg.Models.Story,
		ImageModel:  cfg.Models.Image,
		SpeechModel: cfg.Models.Speech,
		Voice:       cfg.Models.Voice,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	store := storage.NewMemoryStore()
	player := audio.NewPlayer(audio.DiscardOutput{}, logger)
	g := game.New(eng, store, player, game.Options{
		ImageTimeout:  cfg.Media.ImageTimeout,
		SpeechTimeout: cfg.Media.SpeechTimeout,
	}, logger)
	if err := g.Start(ctx); err != nil {
		log.Fatalf("Failed to start game: %v", err)
	}
	if err := g.SetNarration(ctx, false); err != nil {
		log.Fatalf("Failed to disable narration: %v", err)
	}

	// 1. Pick a difficulty
	d := models.Difficulties[rand.IntN(len(models.Difficulties))]
	fmt.Printf("--- Starting a %s game ---\n", d)
	if err := g.BeginGame(ctx, d); err != nil {
		log.Fatalf("Failed to begin game: %v", err)
	}
	g.Wait()
	report(g.Snapshot())

	// 2. Play the game
	for turn := 1; turn <= maxTurns; turn++ {
		snap := g.Snapshot()
		choice := snap.Choices[rand.IntN(len(snap.Choices))].Text
		fmt.Printf("--- Turn %d ---\n", turn)
		fmt.Printf("Player Choice: %s\n", choice)

		if choice == engine.RestartChoice {
			fmt.Println("Game Ended: the storyteller lost the thread.")
			break
		}
		if err := g.Choose(ctx, choice); err != nil {
			fmt.Printf("Error processing turn: %v\n", err)
			break
		}
		g.Wait()
		report(g.Snapshot())
	}

	// 3. Check that the game survives a save and reload
	saved, err := g.Save(ctx)
	if err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	if saved {
		reloaded := game.New(eng, store, player, game.Options{}, logger)
		if err := reloaded.Start(ctx); err != nil {
			log.Fatalf("Failed to reload: %v", err)
		}
		fmt.Printf("Reloaded save: phase=%s, %d history entries\n", reloaded.Snapshot().Phase, len(reloaded.Snapshot().History))
	}
}

func report(snap game.Snapshot) {
	fmt.Printf("Story: %s\n", snap.Story)
	fmt.Printf("Quest: %s\n", snap.Quest)
	fmt.Printf("Inventory: [%s]\n", strings.Join(snap.Inventory, ", "))
	choices := make([]string, 0, len(snap.Choices))
	for _, c := range snap.Choices {
		choices = append(choices, c.Text)
	}
	fmt.Printf("Choices: %s\n", strings.Join(choices, " | "))
	if strings.HasPrefix(snap.ImageURL, "data:") {
		fmt.Printf("Image: generated (%d bytes)\n\n", len(snap.ImageURL))
	} else {
		fmt.Printf("Image: %s\n\n", snap.ImageURL)
	}
}
