package ai

import (
	"context"
	"io"
	"sync"
)

// FakeGenerator is a scripted Generator for tests. Respond decides the reply for
// each request; when nil, Replies are returned in order and the last one repeats.
type FakeGenerator struct {
	Respond func(ctx context.Context, req Request) (string, error)
	Replies []string

	mu    sync.Mutex
	calls []Request
}

func (f *FakeGenerator) Name() string { return "fake" }

func (f *FakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Respond != nil {
		return f.Respond(ctx, req)
	}
	if len(f.Replies) == 0 {
		return "", ErrEmptyCompletion
	}
	if n > len(f.Replies) {
		n = len(f.Replies)
	}
	return f.Replies[n-1], nil
}

// Calls returns a copy of every request seen so far.
func (f *FakeGenerator) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// FakeTranscriber returns Text, or Err when set.
type FakeTranscriber struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls []string
}

func (f *FakeTranscriber) Transcribe(_ context.Context, audio io.Reader, filename, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls = append(f.calls, filename)
	f.mu.Unlock()
	return f.Text, f.Err
}

// Calls returns the filenames transcribed so far.
func (f *FakeTranscriber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
