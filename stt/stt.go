// Package stt turns microphone audio into text.
//
// A Listener owns the capture pipeline: it pulls PCM from an audio
// device, finds the spoken phrase with an energy endpointer, encodes
// it to FLAC and hands the result to a Recognizer.
package stt

import "context"

type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, flacData []byte, sampleRate int) (Result, error)
}

// Result is one recognition outcome. An empty Transcript with a nil
// error means the service heard nothing it could transcribe.
type Result struct {
	Transcript string
	Confidence float64
	Metrics    *NetworkMetrics
}
