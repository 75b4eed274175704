// Package tts turns reply text into audio and plays it on the default
// output device. Synthesis yields raw 16-bit mono PCM so playback can
// stream it without a decoder in between.
package tts

import (
	"context"
	"time"

	"sova/log"
)

const (
	SampleRate = 24000 // matches raw-24khz-16bit-mono-pcm
	Channels   = 1
)

type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// Speaker chains synthesis and playback into one Speak call.
type Speaker struct {
	synth  Synthesizer
	player Player
}

func NewSpeaker(synth Synthesizer, player Player) *Speaker {
	return &Speaker{synth: synth, player: player}
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	synthStart := time.Now()
	pcm, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	log.StageTiming("synthesize", time.Since(synthStart))

	if len(pcm) == 0 {
		log.Warnf("%s returned no audio", s.synth.Name())
		return nil
	}

	playStart := time.Now()
	if err := s.player.Play(ctx, pcm); err != nil {
		return err
	}
	log.StageTiming("playback", time.Since(playStart))
	return nil
}
