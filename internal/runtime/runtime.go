package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicefusion-labs/voicefusion-core/internal/artifact"
	"github.com/voicefusion-labs/voicefusion-core/internal/bus"
	"github.com/voicefusion-labs/voicefusion-core/internal/chat"
	"github.com/voicefusion-labs/voicefusion-core/internal/config"
	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
	"github.com/voicefusion-labs/voicefusion-core/internal/history"
	"github.com/voicefusion-labs/voicefusion-core/internal/natsserver"
	"github.com/voicefusion-labs/voicefusion-core/internal/pipeline"
	"github.com/voicefusion-labs/voicefusion-core/internal/server"
	"github.com/voicefusion-labs/voicefusion-core/internal/translate"
	"github.com/voicefusion-labs/voicefusion-core/internal/tts"
)

// Runtime owns the process lifecycle: telemetry, bus, stores, pipeline, and
// the HTTP surface.
type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	var publisher pipeline.Publisher
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		servers := r.cfg.Bus.Servers
		if embedded != nil {
			servers = []string{embedded.ClientURL()}
		}
		busCfg := r.cfg.Bus
		busCfg.Servers = servers
		busClient, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
		publisher = bus.NewNotifier(busClient)
	}

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	translator := r.buildTranslator()
	completer := r.buildCompleter()
	synth, err := r.buildSynthesizer(ctx)
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}

	manager := conversation.NewManager()
	orch := pipeline.New(r.cfg.Pipeline, pipeline.Deps{
		Translator: translator,
		Completer:  completer,
		Synth:      synth,
		Recorder:   store,
		Publisher:  publisher,
		Voice:      r.cfg.TTS.Voice,
		Language:   r.cfg.TTS.Language,
	}, r.logger)

	api := server.New(manager, orch, store, r.ready.Load, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildTranslator() translate.Client {
	cfg := r.cfg.Translation
	switch cfg.Mode {
	case "marian":
		return translate.NewMarianClient(cfg.Endpoint, time.Duration(cfg.TimeoutMS)*time.Millisecond, cfg.MaxRetries)
	default:
		return translate.NewMockClient()
	}
}

func (r *Runtime) buildCompleter() chat.Completer {
	cfg := r.cfg.Chat
	switch cfg.Mode {
	case "openai":
		return chat.NewOpenAICompleter(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case "ollama":
		return chat.NewOllamaCompleter(cfg.Endpoint, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	default:
		return chat.NewMockCompleter()
	}
}

func (r *Runtime) buildSynthesizer(ctx context.Context) (tts.Synthesizer, error) {
	cfg := r.cfg.TTS

	var synth tts.Synthesizer
	switch cfg.Mode {
	case "xtts":
		synth = tts.NewXTTSSynth(cfg.Endpoint, time.Duration(cfg.TimeoutMS)*time.Millisecond)
	case "openai":
		store, err := artifact.NewMinioStore(ctx, r.cfg.Artifacts, r.logger)
		if err != nil {
			return nil, err
		}
		synth = tts.NewOpenAISynth(r.cfg.Chat.APIKey, cfg.Voice, store)
	case "exec":
		store, err := artifact.NewMinioStore(ctx, r.cfg.Artifacts, r.logger)
		if err != nil {
			return nil, err
		}
		synth, err = tts.NewExecSynth(cfg.Command, store)
		if err != nil {
			return nil, err
		}
	default:
		synth = tts.NewMockSynth()
	}

	synth = tts.WithMaxChars(synth, cfg.MaxInputChars)
	return tts.WithCache(synth, cfg.CacheSize)
}
