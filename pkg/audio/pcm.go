// Package audio holds helpers for the raw PCM that flows between the voice
// channel and the speech providers.
//
// All audio is signed 16-bit little-endian PCM with interleaved channels.
package audio

import (
	"encoding/binary"
	"fmt"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Recognition is the format the speech recognizers are fed.
var Recognition = Format{SampleRate: 16000, Channels: 1}

// Valid reports whether f has a positive rate and channel count.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	}
	return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
}

// Convert returns pcm re-encoded from src to dst. Channel count changes go
// through a mono downmix; rate changes use linear interpolation. A trailing
// odd byte is dropped. Invalid formats return pcm unchanged.
func Convert(pcm []byte, src, dst Format) []byte {
	if src == dst || !src.Valid() || !dst.Valid() || len(pcm) < 2 {
		return pcm
	}

	samples := decode(pcm)
	ch := src.Channels
	if ch != dst.Channels {
		samples = downmix(samples, ch)
		ch = 1
	}
	if src.SampleRate != dst.SampleRate {
		samples = resample(samples, ch, src.SampleRate, dst.SampleRate)
	}
	if ch != dst.Channels {
		samples = spread(samples, dst.Channels)
	}
	return encode(samples)
}

// Drain reads from ch until it is closed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}

func decode(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

func encode(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// downmix averages each frame of ch interleaved samples into one.
func downmix(samples []int16, ch int) []int16 {
	if ch == 1 {
		return samples
	}
	out := make([]int16, len(samples)/ch)
	for i := range out {
		var sum int32
		for c := range ch {
			sum += int32(samples[i*ch+c])
		}
		out[i] = int16(sum / int32(ch))
	}
	return out
}

func resample(samples []int16, ch, from, to int) []int16 {
	frames := len(samples) / ch
	n := int(int64(frames) * int64(to) / int64(from))
	out := make([]int16, n*ch)
	step := float64(from) / float64(to)
	for i := range n {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, frames-1)
		for c := range ch {
			a := float64(samples[idx*ch+c])
			b := float64(samples[next*ch+c])
			out[i*ch+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}

// spread copies each mono sample into ch channels.
func spread(samples []int16, ch int) []int16 {
	out := make([]int16, 0, len(samples)*ch)
	for _, s := range samples {
		for range ch {
			out = append(out, s)
		}
	}
	return out
}
