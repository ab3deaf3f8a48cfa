// Voicerelay is a streaming voice chat relay. It forwards user text to a chat
// model, streams the answer back as it is generated, and speaks each
// completed sentence through a text-to-speech backend.
//
// Usage:
//
//	voicerelay [flags]
//	voicerelay --config /path/to/voicerelay.yaml
//
// @title       voicerelay API
// @version     1.0
// @description Streams chat completions as text tokens and synthesized speech over Server-Sent Events.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openai/openai-go"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/voicerelay/internal/chat"
	ollamachat "github.com/nadzzz/voicerelay/internal/chat/ollama"
	openaichat "github.com/nadzzz/voicerelay/internal/chat/openai"
	"github.com/nadzzz/voicerelay/internal/config"
	"github.com/nadzzz/voicerelay/internal/health"
	"github.com/nadzzz/voicerelay/internal/openaiclient"
	"github.com/nadzzz/voicerelay/internal/relay"
	"github.com/nadzzz/voicerelay/internal/transport"
	grpctransport "github.com/nadzzz/voicerelay/internal/transport/grpc"
	httptransport "github.com/nadzzz/voicerelay/internal/transport/http"
	"github.com/nadzzz/voicerelay/internal/tts"
	openaitts "github.com/nadzzz/voicerelay/internal/tts/openai"
	"github.com/nadzzz/voicerelay/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/voicerelay.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicerelay %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("voicerelay starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("voicerelay stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("voicerelay stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// One client for every OpenAI backend; it is safe for concurrent use.
	var client openai.Client
	if cfg.UsesOpenAI() {
		client = openaiclient.New(cfg.OpenAI)
	}

	streamer, err := newStreamer(cfg, client)
	if err != nil {
		return err
	}
	defer streamer.Close()

	synth, err := newSynthesizer(cfg, client)
	if err != nil {
		return err
	}
	ttsName := ""
	if synth != nil {
		defer synth.Close()
		ttsName = synth.Name()
	}
	slog.Info("backends ready", "chat", streamer.Name(), "tts", ttsName)

	r := relay.New(streamer, synth, relayOptions(cfg))
	transports := newTransports(cfg)
	healthServer := health.New(cfg.Server.HealthPort, streamer.Name(), ttsName)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(ctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, r.Run); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("voicerelay ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"pipeline", cfg.Relay.Pipeline)

	<-ctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutdown signal received, draining...")

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newStreamer(cfg *config.Config, client openai.Client) (chat.Streamer, error) {
	switch cfg.Chat.Backend {
	case "openai":
		return openaichat.New(client, cfg.Chat.Model), nil
	case "ollama":
		return ollamachat.New(cfg.Chat.Ollama), nil
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.Chat.Backend)
	}
}

// newSynthesizer returns a nil Synthesizer when speech is disabled.
func newSynthesizer(cfg *config.Config, client openai.Client) (tts.Synthesizer, error) {
	if !cfg.TTS.Enabled {
		return nil, nil
	}
	switch cfg.TTS.Backend {
	case "openai":
		return openaitts.New(client, cfg.TTS.OpenAI), nil
	case "piper":
		return piper.New(cfg.TTS.Piper), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
	}
}

func relayOptions(cfg *config.Config) relay.Options {
	// Model stays empty: each chat backend is built with its configured model.
	return relay.Options{
		SystemPrompt:      cfg.Chat.SystemPrompt,
		MinSentenceLength: cfg.Relay.MinSentenceLength,
		Terminators:       cfg.Relay.Terminators,
		Pipeline:          cfg.Relay.Pipeline,
		QueueSize:         cfg.Relay.QueueSize,
	}
}

func newTransports(cfg *config.Config) []transport.Transport {
	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	return transports
}
