package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"

	"github.com/voicefusion-labs/voicefusion-core/internal/artifact"
)

type execSynth struct {
	cmd   []string
	store artifact.Store
}

type execRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

// NewExecSynth runs an external synthesis command. The request is written to
// stdin as JSON and the command answers with WAV bytes on stdout, which are
// published to the artifact store.
func NewExecSynth(command string, store artifact.Store) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &execSynth{cmd: args, store: store}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(execRequest{Text: req.Text, Voice: req.Voice, Language: req.Language})
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("tts command failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	audio := stdout.Bytes()
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("tts command produced no audio")
	}

	name := "tts_" + uuid.NewString() + ".wav"
	ref, err := e.store.Put(ctx, name, audio, "audio/wav")
	if err != nil {
		return Result{}, err
	}
	return Result{AudioRef: ref}, nil
}
