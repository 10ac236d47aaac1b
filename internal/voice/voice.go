// Package voice holds the speech collaborator contracts: transcription for
// inbound audio and synthesis for outbound prompts. Both are consumed only
// by the WebSocket channel and stay nil when unconfigured.
package voice

import (
	"context"
	"fmt"
)

// Transcriber converts an audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer renders text as audio in the given voice style.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, style string) ([]byte, error)
}

// TranscriptionError reports a failed transcription attempt.
type TranscriptionError struct {
	Reason string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transcription failed: %s", e.Reason)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
