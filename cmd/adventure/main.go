package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tatianab/adventure-engine/internal/audio"
	"github.com/tatianab/adventure-engine/internal/config"
	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/logger"
	"github.com/tatianab/adventure-engine/internal/storage"
	"github.com/tatianab/adventure-engine/internal/tui"
	"github.com/tatianab/adventure-engine/internal/web"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file (default "+config.DefaultPath+" if present)")
		serveWeb   = flag.Bool("web", false, "serve the game to a browser instead of the terminal")
		ephemeral  = flag.Bool("ephemeral", false, "keep saves in memory only")
		mute       = flag.Bool("mute", false, "never open the audio device")
	)
	flag.Parse()

	if err := run(*configPath, *serveWeb, *ephemeral, *mute); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, serveWeb, ephemeral, mute bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ephemeral {
		cfg.Storage.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	eng, err := engine.NewEngine(ctx, cfg.GeminiAPIKey, engine.Options{
		StoryModel:  cfg.Models.Story,
		ImageModel:  cfg.Models.Image,
		SpeechModel: cfg.Models.Speech,
		Voice:       cfg.Models.Voice,
	}, log)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	player := audio.NewPlayer(openOutput(cfg.Media.Audio && !mute, log), log)
	defer player.Stop()

	g := game.New(eng, store, player, game.Options{
		ImageTimeout:  cfg.Media.ImageTimeout,
		SpeechTimeout: cfg.Media.SpeechTimeout,
	}, log)
	if err := g.Start(ctx); err != nil {
		return err
	}
	defer g.Wait()

	if serveWeb {
		fmt.Printf("Serving the adventure on http://%s\n", cfg.Web.Addr)
		return web.NewServer(g, log).Run(ctx, cfg.Web.Addr)
	}
	return tui.Run(ctx, g)
}

// openOutput opens the audio device, falling back to silent playback.
func openOutput(enabled bool, log zerolog.Logger) audio.Output {
	if !enabled {
		return audio.DiscardOutput{}
	}
	out, err := audio.NewOtoOutput()
	if err != nil {
		log.Warn().Err(err).Msg("no audio device, narration will be silent")
		return audio.DiscardOutput{}
	}
	return out
}
