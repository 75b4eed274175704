package stt

import (
	"math"
	"testing"
)

// 100ms ticks: 5 calibration, 300 max wait (30s), 15 pause (1.5s),
// 300 phrase limit.
func newTestEndpointer() *endpointer {
	return newEndpointer(300, 5, 300, 15, 300)
}

func loudChunk(amplitude int16) []int16 {
	chunk := make([]int16, chunkSamples)
	for i := range chunk {
		if i%2 == 0 {
			chunk[i] = amplitude
		} else {
			chunk[i] = -amplitude
		}
	}
	return chunk
}

func quietChunk() []int16 {
	return make([]int16, chunkSamples)
}

func feedN(e *endpointer, chunk []int16, n int) EndpointEvent {
	var last EndpointEvent
	for i := 0; i < n; i++ {
		last = e.Tick(chunk)
	}
	return last
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %f", got)
	}
	if got := rms(quietChunk()); got != 0 {
		t.Errorf("rms(silence) = %f", got)
	}
	got := rms(loudChunk(1000))
	if math.Abs(got-1000) > 1 {
		t.Errorf("rms(square wave 1000) = %f, want ~1000", got)
	}
}

func TestCalibrationSetsThreshold(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)
	// Quiet room: threshold floors at the configured minimum.
	if e.Threshold() != 300 {
		t.Errorf("threshold = %f, want 300", e.Threshold())
	}

	e = newTestEndpointer()
	feedN(e, loudChunk(1000), 5)
	// Noisy room: threshold lifts above ambient.
	if e.Threshold() < 1400 {
		t.Errorf("threshold = %f, want >= ambient*1.5", e.Threshold())
	}
}

func TestSpeechStartAfterCalibration(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)

	if ev := e.Tick(quietChunk()); ev != EndpointNone {
		t.Fatalf("quiet tick after calibration: %d", ev)
	}
	if ev := e.Tick(loudChunk(2000)); ev != EndpointSpeechStart {
		t.Fatalf("expected EndpointSpeechStart, got %d", ev)
	}
}

func TestLoudCalibrationDoesNotStartSpeech(t *testing.T) {
	e := newTestEndpointer()
	for i := 0; i < 5; i++ {
		if ev := e.Tick(loudChunk(2000)); ev != EndpointNone {
			t.Fatalf("event %d during calibration at tick %d", ev, i)
		}
	}
}

func TestPhraseEndsAfterPause(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)
	if ev := e.Tick(loudChunk(2000)); ev != EndpointSpeechStart {
		t.Fatal("phrase did not start")
	}
	feedN(e, loudChunk(2000), 10)

	// 14 silent ticks: still inside the pause window.
	if ev := feedN(e, quietChunk(), 14); ev != EndpointNone {
		t.Fatalf("phrase ended early: %d", ev)
	}
	// The 15th closes the phrase.
	if ev := e.Tick(quietChunk()); ev != EndpointPhraseEnd {
		t.Fatalf("expected EndpointPhraseEnd, got %d", ev)
	}
}

func TestBriefPauseDoesNotEndPhrase(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)
	e.Tick(loudChunk(2000))

	// Alternate speech with sub-threshold pauses for a while.
	for i := 0; i < 20; i++ {
		if ev := feedN(e, quietChunk(), 10); ev != EndpointNone {
			t.Fatalf("phrase ended during brief pause at round %d: %d", i, ev)
		}
		if ev := e.Tick(loudChunk(2000)); ev != EndpointNone {
			t.Fatalf("unexpected event on resumed speech: %d", ev)
		}
	}
}

func TestPhraseTimeLimit(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)
	e.Tick(loudChunk(2000))

	var ended bool
	for i := 0; i < 300; i++ {
		if ev := e.Tick(loudChunk(2000)); ev == EndpointPhraseEnd {
			ended = true
			break
		}
	}
	if !ended {
		t.Fatal("expected EndpointPhraseEnd at the phrase time limit")
	}
}

func TestNoSpeechTimeout(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, quietChunk(), 5)

	if ev := feedN(e, quietChunk(), 299); ev != EndpointNone {
		t.Fatalf("gave up early: %d", ev)
	}
	if ev := e.Tick(quietChunk()); ev != EndpointNoSpeech {
		t.Fatalf("expected EndpointNoSpeech, got %d", ev)
	}
}

func TestAmbientNoiseBelowThresholdIgnored(t *testing.T) {
	e := newTestEndpointer()
	feedN(e, loudChunk(400), 5) // ambient ~400, threshold ~600

	// Noise at the ambient level never starts a phrase.
	for i := 0; i < 100; i++ {
		if ev := e.Tick(loudChunk(400)); ev == EndpointSpeechStart {
			t.Fatalf("ambient noise started phrase at tick %d", i)
		}
	}
	// Real speech above the lifted threshold does.
	if ev := e.Tick(loudChunk(3000)); ev != EndpointSpeechStart {
		t.Fatalf("expected EndpointSpeechStart, got %d", ev)
	}
}
