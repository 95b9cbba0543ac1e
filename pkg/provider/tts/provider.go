// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g. ElevenLabs) behind a
// streaming interface: text fragments go in on a channel, raw PCM audio comes
// out on another as soon as it is synthesised. The read-aloud player feeds
// one styled segment at a time and applies the segment's rate and pitch
// through the VoiceProfile.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/lingoxa/pkg/types"
)

// ErrVoiceRequired is returned by SynthesizeStream when the voice profile
// carries no ID and the provider has no default voice.
var ErrVoiceRequired = errors.New("tts: voice ID is required")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from text and returns a channel
	// that emits raw PCM audio as it is synthesised.
	//
	// The returned channel is closed when all text has been synthesised, when
	// the provider fails mid-stream, or when ctx is cancelled. Callers must
	// drain it. A non-nil error means the stream could not be started.
	//
	// voice.SpeedFactor and voice.PitchFactor are honoured where the backend
	// supports them; 0 means default.
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the voices available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}

// Synthesize is a convenience wrapper that synthesises a single text and
// collects the complete audio.
func Synthesize(ctx context.Context, p Provider, text string, voice types.VoiceProfile) ([]byte, error) {
	in := make(chan string, 1)
	in <- text
	close(in)

	out, err := p.SynthesizeStream(ctx, in, voice)
	if err != nil {
		return nil, err
	}
	var audio []byte
	for chunk := range out {
		audio = append(audio, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return audio, nil
}
