package main

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicerelay/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Transports: config.TransportsConfig{
			HTTP: config.HTTPConfig{Enabled: true, Port: 8080},
			GRPC: config.GRPCConfig{Enabled: true, Port: 50051},
		},
		Chat: config.ChatConfig{Backend: "openai", Model: "gpt-4o-mini", SystemPrompt: "be brief"},
		TTS:  config.TTSConfig{Enabled: true, Backend: "openai"},
		Relay: config.RelayConfig{
			MinSentenceLength: 5,
			Terminators:       ".",
			Pipeline:          true,
			QueueSize:         2,
		},
	}
}

func TestNewStreamer(t *testing.T) {
	cfg := testConfig()

	s, err := newStreamer(cfg, openai.Client{})
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())

	cfg.Chat.Backend = "ollama"
	s, err = newStreamer(cfg, openai.Client{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", s.Name())

	cfg.Chat.Backend = "eliza"
	_, err = newStreamer(cfg, openai.Client{})
	assert.ErrorContains(t, err, "eliza")
}

func TestNewSynthesizer(t *testing.T) {
	cfg := testConfig()

	s, err := newSynthesizer(cfg, openai.Client{})
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())

	cfg.TTS.Backend = "piper"
	s, err = newSynthesizer(cfg, openai.Client{})
	require.NoError(t, err)
	assert.Equal(t, "piper", s.Name())

	cfg.TTS.Enabled = false
	s, err = newSynthesizer(cfg, openai.Client{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRelayOptions(t *testing.T) {
	opts := relayOptions(testConfig())
	assert.Equal(t, "be brief", opts.SystemPrompt)
	assert.Empty(t, opts.Model)
	assert.Equal(t, 5, opts.MinSentenceLength)
	assert.Equal(t, ".", opts.Terminators)
	assert.True(t, opts.Pipeline)
	assert.Equal(t, 2, opts.QueueSize)
}

func TestNewTransports(t *testing.T) {
	cfg := testConfig()
	var names []string
	for _, tr := range newTransports(cfg) {
		names = append(names, tr.Name())
	}
	assert.Equal(t, []string{"http", "grpc"}, names)

	cfg.Transports.HTTP.Enabled = false
	assert.Len(t, newTransports(cfg), 1)
}
