package stt

import "math"

// The endpointer consumes fixed-size analysis chunks (chunkSamples
// each, chunkDur apart) and decides where the spoken phrase starts
// and ends based on RMS energy.

type EndpointEvent int

const (
	EndpointNone        EndpointEvent = iota
	EndpointSpeechStart               // energy crossed the threshold
	EndpointPhraseEnd                 // trailing silence reached the pause threshold
	EndpointNoSpeech                  // nothing above threshold before the wait limit
)

const ambientFactor = 1.5

type endpointer struct {
	floor      float64 // configured minimum energy threshold
	calibAt    int     // ticks of ambient calibration
	maxWait    int     // ticks to wait for speech before giving up
	pauseAt    int     // trailing silence ticks that end the phrase
	limitAt    int     // hard cap on phrase length in ticks
	threshold  float64
	ticks      int
	ambientSum float64
	speaking   bool
	phraseLen  int
	silenceRun int
}

func newEndpointer(floor float64, calibAt, maxWait, pauseAt, limitAt int) *endpointer {
	return &endpointer{
		floor:   floor,
		calibAt: calibAt,
		maxWait: maxWait,
		pauseAt: pauseAt,
		limitAt: limitAt,
	}
}

func rms(block []int16) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}

func (e *endpointer) Tick(block []int16) EndpointEvent {
	energy := rms(block)
	e.ticks++

	// Calibration: measure the ambient floor, then lift the threshold
	// above it so room noise never counts as speech.
	if e.ticks <= e.calibAt {
		e.ambientSum += energy
		if e.ticks == e.calibAt {
			ambient := e.ambientSum / float64(e.calibAt)
			e.threshold = math.Max(e.floor, ambient*ambientFactor)
		}
		return EndpointNone
	}

	if !e.speaking {
		if energy >= e.threshold {
			e.speaking = true
			e.phraseLen = 1
			e.silenceRun = 0
			return EndpointSpeechStart
		}
		if e.ticks-e.calibAt >= e.maxWait {
			return EndpointNoSpeech
		}
		return EndpointNone
	}

	e.phraseLen++
	if energy >= e.threshold {
		e.silenceRun = 0
	} else {
		e.silenceRun++
	}

	if e.silenceRun >= e.pauseAt {
		return EndpointPhraseEnd
	}
	if e.phraseLen >= e.limitAt {
		return EndpointPhraseEnd
	}
	return EndpointNone
}

// Threshold reports the calibrated energy threshold, zero before
// calibration completes.
func (e *endpointer) Threshold() float64 {
	return e.threshold
}
