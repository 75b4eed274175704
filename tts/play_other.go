//go:build !linux

package tts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoPlayer struct{}

func NewPlayer() Player {
	return &malgoPlayer{}
}

func (p *malgoPlayer) Play(ctx context.Context, pcm []byte) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: %w", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = Channels
	config.SampleRate = SampleRate

	var pos atomic.Uint32
	var once sync.Once
	done := make(chan struct{})

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			p := pos.Load()
			total := uint32(len(pcm))
			want := frameCount * 2

			if p >= total {
				for i := range pOutput {
					pOutput[i] = 0
				}
				once.Do(func() { close(done) })
				return
			}

			n := want
			if n > total-p {
				n = total - p
			}
			copy(pOutput[:n], pcm[p:p+n])
			pos.Store(p + n)
			for i := n; i < want; i++ {
				pOutput[i] = 0
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		return fmt.Errorf("malgo playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}

	select {
	case <-ctx.Done():
		device.Stop()
		return ctx.Err()
	case <-done:
		device.Stop()
		return nil
	}
}
