// Package pipeline sequences translation, chat completion, and speech
// synthesis into a single conversational turn. Translation and chat failures
// abort the turn; synthesis failures degrade it to text-only, because a
// spoken-audio problem must never hide a successful textual answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voicefusion-labs/voicefusion-core/internal/chat"
	"github.com/voicefusion-labs/voicefusion-core/internal/config"
	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
	"github.com/voicefusion-labs/voicefusion-core/internal/protocol"
	"github.com/voicefusion-labs/voicefusion-core/internal/translate"
	"github.com/voicefusion-labs/voicefusion-core/internal/tts"
)

// Options carries per-turn translation parameters. Translation runs when
// TargetLang is set; SourceLang defaults to auto-detection.
type Options struct {
	SourceLang string
	TargetLang string
}

func (o Options) translationRequested() bool { return o.TargetLang != "" }

// Outcome is the result of one orchestrated turn. FinalText is always
// non-empty on success; AudioRef is empty iff Degraded is true.
type Outcome struct {
	FinalText string
	AudioRef  string
	Degraded  bool
}

// Recorder persists completed turns outside the in-memory log. Recording is
// best effort and never fails a turn.
type Recorder interface {
	RecordTurn(ctx context.Context, conversationID string, turn conversation.Turn) error
}

// Publisher broadcasts turn events for live consumers. Best effort.
type Publisher interface {
	TurnCompleted(ctx context.Context, event protocol.TurnCompleted) error
	TurnFailed(ctx context.Context, event protocol.TurnFailed) error
}

// Orchestrator runs the translate -> chat -> synthesize sequence for one
// conversation turn at a time.
type Orchestrator struct {
	cfg        config.PipelineConfig
	translator translate.Client
	completer  chat.Completer
	synth      tts.Synthesizer
	recorder   Recorder
	publisher  Publisher
	voice      string
	language   string
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *pipelineMetrics
}

// Deps bundles the orchestrator's collaborators. Recorder and Publisher may
// be nil.
type Deps struct {
	Translator translate.Client
	Completer  chat.Completer
	Synth      tts.Synthesizer
	Recorder   Recorder
	Publisher  Publisher
	Voice      string
	Language   string
}

func New(cfg config.PipelineConfig, deps Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		translator: deps.Translator,
		completer:  deps.Completer,
		synth:      deps.Synth,
		recorder:   deps.Recorder,
		publisher:  deps.Publisher,
		voice:      deps.Voice,
		language:   deps.Language,
		logger:     logger.With(slog.String("component", "pipeline")),
		tracer:     otel.Tracer("github.com/voicefusion-labs/voicefusion-core/pipeline"),
		metrics:    newPipelineMetrics(),
	}
}

// ProcessTurn runs one full exchange. On success exactly two turns (user,
// assistant) are appended to conv. Validation and translation failures leave
// the conversation untouched; a chat failure leaves only the user turn (the
// user's input was accepted even though no reply was produced). If ctx is
// cancelled mid-flight, results of calls that complete afterwards are
// discarded, never appended.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conv *conversation.Conversation, userText string, opts Options) (Outcome, error) {
	trimmed := strings.TrimSpace(userText)
	if trimmed == "" {
		err := newError(KindValidation, errors.New("user text is empty"))
		o.metrics.recordFailure(ctx, KindValidation)
		return Outcome{}, err
	}

	if err := conv.Begin(); err != nil {
		o.metrics.recordFailure(ctx, KindConcurrentTurn)
		return Outcome{}, newError(KindConcurrentTurn, err)
	}
	defer conv.End()

	ctx, span := o.tracer.Start(ctx, "pipeline.turn")
	defer span.End()

	userContent := trimmed
	if opts.translationRequested() {
		translated, err := o.translateInput(ctx, trimmed, opts)
		if err != nil {
			return Outcome{}, o.fail(ctx, span, conv, KindTranslation, err)
		}
		userContent = translated
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	userTurn := conv.Append(conversation.RoleUser, userContent)

	reply, err := o.completeChat(ctx, conv)
	if err != nil {
		return Outcome{}, o.fail(ctx, span, conv, KindChatCompletion, err)
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	assistantTurn := conv.Append(conversation.RoleAssistant, reply)

	outcome := Outcome{FinalText: reply}
	audioRef, err := o.synthesizeReply(ctx, reply)
	if err != nil {
		// Degrade instead of failing: the text reply must still reach the
		// caller when audio is unavailable.
		o.logger.Warn("synthesis failed, degrading to text-only",
			slog.String("conversation_id", conv.ID()),
			slogError(err))
		span.RecordError(err)
		o.metrics.recordFailure(ctx, KindSynthesis)
		outcome.Degraded = true
	} else {
		outcome.AudioRef = audioRef
	}

	o.metrics.recordTurn(ctx, outcome.Degraded)
	o.record(conv, userTurn, assistantTurn)
	o.publishCompleted(conv.ID(), userContent, outcome)
	return outcome, nil
}

func (o *Orchestrator) translateInput(ctx context.Context, text string, opts Options) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.translate")
	defer span.End()
	start := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TranslateTimeout)*time.Millisecond)
	defer cancel()

	source := opts.SourceLang
	if source == "" {
		source = translate.SourceAuto
	}
	result, err := o.translator.Translate(stageCtx, translate.Request{
		Text:       text,
		SourceLang: source,
		TargetLang: opts.TargetLang,
	})
	o.metrics.recordStage(ctx, "translate", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translation failed")
		return "", err
	}
	return result.TranslatedText, nil
}

func (o *Orchestrator) completeChat(ctx context.Context, conv *conversation.Conversation) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.chat")
	defer span.End()
	start := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.ChatTimeout)*time.Millisecond)
	defer cancel()

	window := conv.Window(o.cfg.MaxWindowTurns)
	reply, err := o.completer.Complete(stageCtx, window, o.cfg.SystemInstruction)
	o.metrics.recordStage(ctx, "chat", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		err := fmt.Errorf("chat backend returned empty reply")
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty reply")
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) synthesizeReply(ctx context.Context, reply string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()
	start := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.SynthesisTimeout)*time.Millisecond)
	defer cancel()

	result, err := o.synth.Synthesize(stageCtx, tts.Request{
		Text:     reply,
		Voice:    o.voice,
		Language: o.language,
	})
	o.metrics.recordStage(ctx, "synthesize", time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return result.AudioRef, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, conv *conversation.Conversation, kind Kind, err error) error {
	wrapped := newError(kind, err)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, string(kind))
	o.metrics.recordFailure(ctx, kind)
	o.publishFailed(conv.ID(), kind, err)
	return wrapped
}

// record mirrors the appended turn pair into the history store, exactly as it
// sits in the in-memory log. Uses a fresh context so an already-cancelled
// request cannot abort persistence midway.
func (o *Orchestrator) record(conv *conversation.Conversation, turns ...conversation.Turn) {
	if o.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, turn := range turns {
		if err := o.recorder.RecordTurn(ctx, conv.ID(), turn); err != nil {
			o.logger.Warn("failed to record turn", slog.String("conversation_id", conv.ID()), slogError(err))
			return
		}
	}
}

func (o *Orchestrator) publishCompleted(conversationID, userText string, outcome Outcome) {
	if o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event := protocol.TurnCompleted{
		ConversationID: conversationID,
		UserText:       userText,
		AssistantText:  outcome.FinalText,
		AudioRef:       outcome.AudioRef,
		Degraded:       outcome.Degraded,
		Timestamp:      time.Now().UTC(),
	}
	if err := o.publisher.TurnCompleted(ctx, event); err != nil {
		o.logger.Warn("failed to publish turn event", slogError(err))
	}
}

func (o *Orchestrator) publishFailed(conversationID string, kind Kind, err error) {
	if o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event := protocol.TurnFailed{
		ConversationID: conversationID,
		Kind:           string(kind),
		Message:        err.Error(),
		Timestamp:      time.Now().UTC(),
	}
	if pubErr := o.publisher.TurnFailed(ctx, event); pubErr != nil {
		o.logger.Warn("failed to publish turn failure event", slogError(pubErr))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
