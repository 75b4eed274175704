package stt

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"sova/audio"
	"sova/encoder"
	"sova/log"
)

const (
	chunkSamples = 1600 // 100ms at 16kHz
	chunkDur     = 100 * time.Millisecond
	calibDur     = 500 * time.Millisecond
	preRollTicks = 3 // audio kept from just before speech onset
)

type ListenerConfig struct {
	EnergyThreshold float64
	PauseThreshold  time.Duration // trailing silence that ends the phrase
	PhraseTimeLimit time.Duration // hard cap on phrase length
	MaxWait         time.Duration // give up if no speech starts in this window
}

// Listener captures one phrase from the microphone and recognizes it.
type Listener struct {
	audio      audio.Context
	device     *audio.DeviceInfo
	recognizer Recognizer
	cfg        ListenerConfig
}

func NewListener(actx audio.Context, device *audio.DeviceInfo, rec Recognizer, cfg ListenerConfig) *Listener {
	if cfg.MaxWait == 0 {
		cfg.MaxWait = cfg.PhraseTimeLimit
	}
	return &Listener{audio: actx, device: device, recognizer: rec, cfg: cfg}
}

func ticks(d time.Duration) int {
	n := int(d / chunkDur)
	if n < 1 {
		n = 1
	}
	return n
}

// Capture records until the endpointer sees a complete phrase, then
// recognizes it. It returns "" with a nil error when no speech was
// heard, and ctx.Err() when cancelled mid-capture.
func (l *Listener) Capture(ctx context.Context) (string, error) {
	dev, err := l.audio.NewCapture(l.device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return "", fmt.Errorf("opening capture device: %w", err)
	}

	if w, ok := l.recognizer.(interface{ Warm() }); ok {
		go w.Warm()
	}

	chunks := make(chan []int16, 64)
	var partial []int16
	dev.SetCallback(func(data []byte, frameCount uint32) {
		for i := 0; i+1 < len(data); i += 2 {
			partial = append(partial, int16(binary.LittleEndian.Uint16(data[i:])))
			if len(partial) == chunkSamples {
				select {
				case chunks <- partial:
				default: // consumer stalled, drop rather than block the audio thread
				}
				partial = nil
			}
		}
	})

	if err := dev.Start(); err != nil {
		dev.Close()
		return "", fmt.Errorf("starting capture: %w", err)
	}

	captureOpen := true
	stopCapture := func() {
		if captureOpen {
			captureOpen = false
			dev.ClearCallback()
			dev.Stop()
			dev.Close()
		}
	}
	defer stopCapture()

	ep := newEndpointer(l.cfg.EnergyThreshold,
		ticks(calibDur), ticks(l.cfg.MaxWait),
		ticks(l.cfg.PauseThreshold), ticks(l.cfg.PhraseTimeLimit))

	enc, err := encoder.NewFlac()
	if err != nil {
		return "", err
	}

	var preRoll [][]int16
	var pending []int16
	speaking := false
	captureStart := time.Now()

	flushBlock := func(force bool) error {
		for len(pending) >= encoder.BlockSize {
			if err := enc.EncodeBlock(pending[:encoder.BlockSize]); err != nil {
				return err
			}
			pending = pending[encoder.BlockSize:]
		}
		if force && len(pending) > 0 {
			if err := enc.EncodeBlock(pending); err != nil {
				return err
			}
			pending = nil
		}
		return nil
	}

loop:
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk := <-chunks:
			switch ep.Tick(chunk) {
			case EndpointSpeechStart:
				speaking = true
				log.Infof("speech started (threshold %.0f)", ep.Threshold())
				for _, pr := range preRoll {
					pending = append(pending, pr...)
				}
				preRoll = nil
				pending = append(pending, chunk...)
			case EndpointPhraseEnd:
				pending = append(pending, chunk...)
				break loop
			case EndpointNoSpeech:
				log.Info("no speech before wait limit")
				return "", nil
			default:
				if speaking {
					pending = append(pending, chunk...)
					if err := flushBlock(false); err != nil {
						return "", err
					}
				} else {
					preRoll = append(preRoll, chunk)
					if len(preRoll) > preRollTicks {
						preRoll = preRoll[1:]
					}
				}
			}
		}
	}

	stopCapture()
	log.StageTiming("capture", time.Since(captureStart))

	if err := flushBlock(true); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalizing flac: %w", err)
	}

	recognizeStart := time.Now()
	result, err := l.recognizer.Recognize(ctx, enc.Bytes(), encoder.SampleRate)
	if err != nil {
		return "", fmt.Errorf("%s recognition: %w", l.recognizer.Name(), err)
	}
	log.StageTiming("recognize", time.Since(recognizeStart))
	if result.Metrics != nil {
		log.Infof("recognize network total %dms (reused=%v)",
			result.Metrics.Total.Milliseconds(), result.Metrics.ConnReused)
	}

	return result.Transcript, nil
}
