package stt

import (
	"context"
	"fmt"
)

type FakeRecognizer struct {
	transcript string
	err        error

	Calls     int
	LastBytes int
}

func NewFake(transcript string, err error) *FakeRecognizer {
	return &FakeRecognizer{transcript: transcript, err: err}
}

func (f *FakeRecognizer) Name() string { return "fake" }

func (f *FakeRecognizer) Recognize(_ context.Context, flacData []byte, _ int) (Result, error) {
	f.Calls++
	f.LastBytes = len(flacData)
	if f.err != nil {
		return Result{}, fmt.Errorf("fake recognizer error: %w", f.err)
	}
	return Result{Transcript: f.transcript, Confidence: 0.9}, nil
}
