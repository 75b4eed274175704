//go:build linux

package tts

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"
)

type pulsePlayer struct{}

func NewPlayer() Player {
	return &pulsePlayer{}
}

func (p *pulsePlayer) Play(ctx context.Context, pcm []byte) error {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	c, err := pulse.NewClient()
	if err != nil {
		return fmt.Errorf("pulse: %w", err)
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})

	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Start()
		stream.Drain()
	}()

	select {
	case <-ctx.Done():
		stream.Stop()
		stream.Close()
		<-done
		return ctx.Err()
	case <-done:
		stream.Stop()
		stream.Close()
		return nil
	}
}
