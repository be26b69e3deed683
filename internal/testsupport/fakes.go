package testsupport

import (
	"context"
	"sync"
	"time"

	"notecast/internal/services/llm"
	"notecast/internal/services/tts"
)

// FakeGenerator is a scripted llm.Generator. Respond takes precedence over
// Responses, which are returned in order with the last one repeated.
type FakeGenerator struct {
	Respond   func(req llm.Request) (string, error)
	Responses []string
	Err       error

	mu    sync.Mutex
	calls []llm.Request
}

// Generate records the request and returns the scripted reply.
func (f *FakeGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	index := len(f.calls) - 1
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Respond != nil {
		return f.Respond(req)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	if index >= len(f.Responses) {
		index = len(f.Responses) - 1
	}
	return f.Responses[index], nil
}

// Calls returns a copy of the recorded requests.
func (f *FakeGenerator) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// SpeechCall records one synthesis request.
type SpeechCall struct {
	Text  string
	Voice string
}

// FakeSynthesizer is a tts.Synthesizer whose PCM payload is the input text
// (padded to whole samples) and whose reported duration is fixed.
type FakeSynthesizer struct {
	SegmentDuration time.Duration
	Delay           time.Duration
	FailOn          func(text, voice string) error

	mu        sync.Mutex
	calls     []SpeechCall
	active    int
	maxActive int
}

// Synthesize records the call and returns a deterministic segment.
func (f *FakeSynthesizer) Synthesize(ctx context.Context, text, voice string) (tts.Segment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, SpeechCall{Text: text, Voice: voice})
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return tts.Segment{}, ctx.Err()
		}
	}
	if f.FailOn != nil {
		if err := f.FailOn(text, voice); err != nil {
			return tts.Segment{}, err
		}
	}
	pcm := []byte(text)
	if len(pcm)%2 != 0 {
		pcm = append(pcm, ' ')
	}
	duration := f.SegmentDuration
	if duration <= 0 {
		duration = time.Minute
	}
	return tts.Segment{PCM: pcm, Duration: duration}, nil
}

// Calls returns a copy of the recorded requests.
func (f *FakeSynthesizer) Calls() []SpeechCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SpeechCall(nil), f.calls...)
}

// MaxConcurrent reports the highest number of overlapping calls observed.
func (f *FakeSynthesizer) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
