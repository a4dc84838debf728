package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/llms/mock"
	"github.com/koscakluka/ema-voice/core/llms/openai"
	"github.com/koscakluka/ema-voice/core/permissions"
	stt "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	tts "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voice/internal/config"
)

const portaudioBufferSize = 1024

type device interface {
	audio.InputWithErrors
	audio.Output
	Close()
}

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	printSchema := flag.Bool("schema", false, "print the config file JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	voice := tts.VoiceThalia
	if cfg.Voice != "" {
		parsed, ok := tts.ParseVoice(cfg.Voice)
		if !ok {
			return fmt.Errorf("unknown voice %q, available voices: %v", cfg.Voice, tts.GetAvailableVoices())
		}
		voice = parsed
	}
	synthesizer, err := tts.NewSynthesizer(voice, tts.WithAPIKey(cfg.DeepgramAPIKey), tts.WithOutput(dev))
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	recognizer := stt.NewRecognizer(
		stt.WithAPIKey(cfg.DeepgramAPIKey),
		stt.WithServerEndpointing(cfg.ServerEndpointing),
	)

	silencePolicy := orchestration.SilenceReturnsToIdle
	if cfg.SilencePolicy == config.SilenceKeepListening {
		silencePolicy = orchestration.SilenceKeepsListening
	}

	sender := &programSender{}

	controller := orchestration.NewTurnController(
		orchestration.WithPermissionAuthority(permissions.GrantAll()),
		orchestration.WithAudioInput(dev),
		orchestration.WithRecognizer(recognizer),
		orchestration.WithGenerator(generator),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithSpeechEncoding(dev.EncodingInfo()),
		orchestration.WithHistory(conversations.NewHistory(cfg.HistoryLimit)),
		orchestration.WithQuietInterval(cfg.QuietInterval.Duration()),
		orchestration.WithSilencePolicy(silencePolicy),
		orchestration.WithMaxRetries(cfg.MaxRetries),
		orchestration.WithEventHandler(orchestration.EventHandlerFunc(func(event events.Event) {
			sender.send(eventMsg{event: event})
		})),
		orchestration.WithErrorCallback(func(err error, retryable, requiresSettings bool) {
			sender.send(errorMsg{err: err, retryable: retryable, requiresSettings: requiresSettings})
		}),
	)
	defer controller.Close()

	p := tea.NewProgram(newModel(context.Background(), controller), tea.WithAltScreen())
	sender.attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}

func openDevice(cfg config.Config) (device, error) {
	switch cfg.AudioBackend {
	case config.BackendPortaudio:
		client, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio: %w", err)
		}
		return client, nil
	default:
		client, err := miniaudio.NewClient(miniaudio.WithSampleRate(cfg.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio: %w", err)
		}
		if err := client.StartPlayback(context.Background()); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start playback: %w", err)
		}
		return client, nil
	}
}

func newGenerator(cfg config.Config) (llms.Generator, error) {
	if cfg.Generator == config.GeneratorMock {
		return mock.NewGenerator(mock.WithDelay(cfg.MockDelay.Duration())), nil
	}

	var opts []openai.ClientOption
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, openai.WithSystemPrompt(cfg.SystemPrompt))
	}

	client, err := openai.NewClient(cfg.OpenAIAPIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return client, nil
}
