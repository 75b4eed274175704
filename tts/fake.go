package tts

import (
	"context"
	"fmt"
)

type FakeSynthesizer struct {
	pcm []byte
	err error

	Calls    int
	LastText string
}

func NewFakeSynthesizer(pcm []byte, err error) *FakeSynthesizer {
	return &FakeSynthesizer{pcm: pcm, err: err}
}

func (f *FakeSynthesizer) Name() string { return "fake" }

func (f *FakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.Calls++
	f.LastText = text
	if f.err != nil {
		return nil, fmt.Errorf("fake synthesizer error: %w", f.err)
	}
	return f.pcm, nil
}

type FakePlayer struct {
	err error

	Calls    int
	LastPCM  []byte
	Blocking chan struct{} // when set, Play waits here or for ctx
}

func NewFakePlayer(err error) *FakePlayer {
	return &FakePlayer{err: err}
}

func (f *FakePlayer) Play(ctx context.Context, pcm []byte) error {
	f.Calls++
	f.LastPCM = pcm
	if f.Blocking != nil {
		select {
		case <-f.Blocking:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}
