package doctor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sova/audio"
	"sova/clipboard"
	"sova/config"
	"sova/encoder"
	"sova/hotkey"
	"sova/llm"
	"sova/stt"
	"sova/tts"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("sova doctor - interactive system diagnostics")
	fmt.Println("============================================")

	allPass := true

	if !checkHotkey(cfg.Hotkey) {
		allPass = false
	}
	if allPass && !checkMicAndRecognition(cfg) {
		allPass = false
	}
	if allPass && !checkLLM(cfg) {
		allPass = false
	}
	if allPass && !checkVoice(cfg) {
		allPass = false
	}
	if allPass && !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkHotkey(spec string) bool {
	fmt.Println()
	fmt.Println("[1/5] Hotkey detection")

	combo, err := hotkey.ParseCombo(spec)
	if err != nil {
		fmt.Printf("  FAIL: bad hotkey %q in config: %v\n", spec, err)
		return false
	}
	if msg, err := hotkey.Diagnose(combo); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else if msg != "" {
		fmt.Printf("  Note: %s\n", msg)
	}
	fmt.Printf("Press %s...\n", combo)

	hk, err := hotkey.New(combo)
	if err != nil {
		fmt.Printf("  FAIL: could not create hotkey: %v\n", err)
		return false
	}
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Wait for keyup so the release does not leak into the next step.
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// Some backends leave the terminal in raw mode.
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndRecognition(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[2/5] Microphone and speech recognition")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if cfg.Speech.Device != "" {
		for i := range devices {
			if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(cfg.Speech.Device)) {
				device = &devices[i]
				break
			}
		}
		if device == nil {
			fmt.Printf("  FAIL: configured device %q not found\n", cfg.Speech.Device)
			return false
		}
	} else {
		device = &devices[0]
	}
	fmt.Printf("Using device: %s\n", device.Name)

	fmt.Println()
	fmt.Println("Speak for 3 seconds...")

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	pcm, err := recordAudio(actx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	fmt.Printf("  Recorded %.1f KB, recognizing...\n", float64(len(pcm))/1024)

	flacData, err := encodePCM(pcm)
	if err != nil {
		fmt.Printf("  FAIL: encoding error: %v\n", err)
		return false
	}

	rec := stt.NewGoogle(cfg.Speech.Language, "")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	result, err := rec.Recognize(ctx, flacData, encoder.SampleRate)
	if err != nil {
		fmt.Printf("  FAIL: recognition error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Transcript)
	if text == "" {
		fmt.Println("  FAIL: no speech recognized; check microphone level")
		return false
	}

	fmt.Printf("  PASS: recognized %q\n", text)
	return true
}

func encodePCM(pcm []byte) ([]byte, error) {
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}
	samples := make([]int16, 0, encoder.BlockSize)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int16(uint16(pcm[i])|uint16(pcm[i+1])<<8))
		if len(samples) == encoder.BlockSize {
			if err := enc.EncodeBlock(samples); err != nil {
				return nil, err
			}
			samples = samples[:0]
		}
	}
	if len(samples) > 0 {
		if err := enc.EncodeBlock(samples); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func recordAudio(actx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	cfg := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	captureDevice, err := actx.NewCapture(device, cfg)
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, nil
}

func checkLLM(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/5] Language model endpoint")
	fmt.Printf("Querying %s (%s)...\n", cfg.LLM.BaseURL, cfg.LLM.Model)

	client := llm.New(llm.Options{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		System:    "Reply with the single word: ok",
		MaxTokens: 8,
		Timeout:   cfg.LLMTimeout(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout())
	defer cancel()
	reply, err := client.Query(ctx, "ping")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  PASS: model replied %q\n", strings.TrimSpace(reply))
	return true
}

func checkVoice(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[4/5] Voice synthesis and playback")
	fmt.Printf("Synthesizing with voice %s...\n", cfg.Voice.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	edge := tts.NewEdge(cfg.Voice.Name)
	pcm, err := edge.Synthesize(ctx, "Sova diagnostics check.")
	if err != nil {
		fmt.Printf("  FAIL: synthesis error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: synthesis returned no audio")
		return false
	}

	fmt.Printf("  Synthesized %.1f KB, playing...\n", float64(len(pcm))/1024)
	if err := tts.NewPlayer().Play(ctx, pcm); err != nil {
		fmt.Printf("  FAIL: playback error: %v\n", err)
		return false
	}

	fmt.Println("  PASS: voice synthesis and playback completed")
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[5/5] Clipboard")

	testStr := fmt.Sprintf("sova-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung?)")
		return false
	}
}
