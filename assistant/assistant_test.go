package assistant

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type captureFunc func(ctx context.Context) (string, error)

func (f captureFunc) Capture(ctx context.Context) (string, error) { return f(ctx) }

type queryFunc func(ctx context.Context, transcript string) (string, error)

func (f queryFunc) Query(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

type speakFunc func(ctx context.Context, reply string) error

func (f speakFunc) Speak(ctx context.Context, reply string) error { return f(ctx, reply) }

type fakeSurface struct {
	mu     sync.Mutex
	views  []View
	hides  int
	update chan View
	hidden chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		update: make(chan View, 64),
		hidden: make(chan struct{}, 8),
	}
}

func (s *fakeSurface) Update(v View) {
	s.mu.Lock()
	s.views = append(s.views, v)
	s.mu.Unlock()
	s.update <- v
}

func (s *fakeSurface) Hide() {
	s.mu.Lock()
	s.hides++
	s.mu.Unlock()
	s.hidden <- struct{}{}
}

func (s *fakeSurface) viewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func (s *fakeSurface) hideCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hides
}

func waitView(t *testing.T, s *fakeSurface, want State) View {
	t.Helper()
	select {
	case v := <-s.update:
		if v.State != want {
			t.Fatalf("got view state %v, want %v", v.State, want)
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view %v", want)
	}
	return View{}
}

func waitHide(t *testing.T, s *fakeSurface) {
	t.Helper()
	select {
	case <-s.hidden:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hide")
	}
}

func okSpeaker() speakFunc {
	return func(ctx context.Context, reply string) error { return nil }
}

func TestFullCycle(t *testing.T) {
	var queried atomic.Value
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "สวัสดี", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) {
			queried.Store(transcript)
			return "สวัสดีครับ", nil
		}),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: 30 * time.Millisecond},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateThinking)
	waitView(t, surf, StateSpeaking)
	done := waitView(t, surf, StateDone)

	if done.Text != "สวัสดีครับ" {
		t.Errorf("final text = %q, want %q", done.Text, "สวัสดีครับ")
	}
	if got := queried.Load(); got != "สวัสดี" {
		t.Errorf("inferencer got %q, want %q", got, "สวัสดี")
	}

	waitHide(t, surf)
	if st := o.State(); st != StateIdle {
		t.Errorf("state after auto-hide = %v, want idle", st)
	}
}

func TestEmptyTranscriptSkipsInference(t *testing.T) {
	var inferCalls atomic.Int32
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "   ", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) {
			inferCalls.Add(1)
			return "", nil
		}),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	v := waitView(t, surf, StateCaptureFailed)
	if !errors.Is(v.Err, ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", v.Err)
	}
	if n := inferCalls.Load(); n != 0 {
		t.Errorf("inferencer called %d times, want 0", n)
	}
}

func TestReactivateCancelsCapture(t *testing.T) {
	release := make(chan struct{})
	var captures atomic.Int32
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) {
			captures.Add(1)
			select {
			case <-release:
				return "late words", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}),
		queryFunc(func(ctx context.Context, transcript string) (string, error) {
			t.Error("inferencer must not run for a cancelled session")
			return "", nil
		}),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)

	// second trigger while capturing cancels, it never starts a new session
	o.Activate()
	waitHide(t, surf)
	if st := o.State(); st != StateIdle {
		t.Fatalf("state after re-activate = %v, want idle", st)
	}

	// the original worker finishing later must change nothing
	close(release)
	time.Sleep(50 * time.Millisecond)
	if st := o.State(); st != StateIdle {
		t.Errorf("state after late result = %v, want idle", st)
	}
	if n := surf.viewCount(); n != 1 {
		t.Errorf("view count after late result = %d, want 1", n)
	}
	if n := captures.Load(); n != 1 {
		t.Errorf("capturer called %d times, want 1", n)
	}
}

func TestCancelFromEachState(t *testing.T) {
	for _, tc := range []struct {
		name  string
		state State
	}{
		{"capturing", StateCapturing},
		{"thinking", StateThinking},
		{"speaking", StateSpeaking},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gate := make(chan struct{})
			hold := func(ctx context.Context) {
				select {
				case <-gate:
				case <-ctx.Done():
				}
			}
			surf := newFakeSurface()
			o := New(
				captureFunc(func(ctx context.Context) (string, error) {
					if tc.state == StateCapturing {
						hold(ctx)
						return "", ctx.Err()
					}
					return "hello", nil
				}),
				queryFunc(func(ctx context.Context, transcript string) (string, error) {
					if tc.state == StateThinking {
						hold(ctx)
						return "", ctx.Err()
					}
					return "reply", nil
				}),
				speakFunc(func(ctx context.Context, reply string) error {
					hold(ctx)
					return ctx.Err()
				}),
				surf,
				Options{AutoHideDelay: time.Minute},
			)
			o.Start()
			defer o.Close()
			defer close(gate)

			o.Activate()
			for {
				v := <-surf.update
				if v.State == tc.state {
					break
				}
			}

			o.Cancel()
			waitHide(t, surf)
			if st := o.State(); st != StateIdle {
				t.Errorf("state after cancel = %v, want idle", st)
			}
		})
	}
}

func TestPlaybackFailureKeepsReply(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "question", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) {
			return "the answer", nil
		}),
		speakFunc(func(ctx context.Context, reply string) error {
			return errors.New("audio device gone")
		}),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateThinking)
	waitView(t, surf, StateSpeaking)
	v := waitView(t, surf, StatePlaybackFailed)
	if v.Text != "the answer" {
		t.Errorf("reply text = %q, want it kept visible", v.Text)
	}
	var serr *StageError
	if !errors.As(v.Err, &serr) || serr.Stage != StagePlayback {
		t.Errorf("err = %v, want playback StageError", v.Err)
	}
}

func TestInferenceFailure(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "question", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) {
			return "", errors.New("backend unreachable")
		}),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateThinking)
	v := waitView(t, surf, StateInferenceFailed)
	var serr *StageError
	if !errors.As(v.Err, &serr) || serr.Stage != StageInference {
		t.Errorf("err = %v, want inference StageError", v.Err)
	}
}

func TestCaptureDeviceFailure(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) {
			return "", errors.New("no microphone")
		}),
		queryFunc(func(ctx context.Context, transcript string) (string, error) { return "", nil }),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateCaptureFailed)
}

func TestAutoHideRearm(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "q", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) { return "a", nil }),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: 80 * time.Millisecond},
	)
	o.Start()
	defer o.Close()

	// each completed session re-arms the deadline; only the last one fires
	for i := 0; i < 3; i++ {
		o.Activate()
		waitView(t, surf, StateCapturing)
		waitView(t, surf, StateThinking)
		waitView(t, surf, StateSpeaking)
		waitView(t, surf, StateDone)
	}

	waitHide(t, surf)
	time.Sleep(200 * time.Millisecond)
	if n := surf.hideCount(); n != 1 {
		t.Errorf("hide fired %d times, want exactly 1", n)
	}
}

func TestRestStateReactivation(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "q", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) { return "a", nil }),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateThinking)
	waitView(t, surf, StateSpeaking)
	waitView(t, surf, StateDone)

	first, _ := o.Current()

	// activation from a rest state starts a brand-new session, no hide
	o.Activate()
	waitView(t, surf, StateCapturing)
	waitView(t, surf, StateThinking)
	waitView(t, surf, StateSpeaking)
	waitView(t, surf, StateDone)

	second, ok := o.Current()
	if !ok || second.ID <= first.ID {
		t.Errorf("second session id = %d, want > %d", second.ID, first.ID)
	}
	if n := surf.hideCount(); n != 0 {
		t.Errorf("hide called %d times before any deadline, want 0", n)
	}
}

// Fuzz arbitrary cancel/late-completion interleavings: whatever the timing,
// a result from a superseded session must never mutate visible state.
func TestStaleResultImmunity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 40; i++ {
		delay := time.Duration(rng.Intn(8)) * time.Millisecond
		cancelAfter := time.Duration(rng.Intn(8)) * time.Millisecond

		surf := newFakeSurface()
		o := New(
			captureFunc(func(ctx context.Context) (string, error) {
				time.Sleep(delay)
				return fmt.Sprintf("text-%d", i), nil
			}),
			queryFunc(func(ctx context.Context, transcript string) (string, error) {
				time.Sleep(delay)
				return "reply", nil
			}),
			okSpeaker(),
			surf,
			Options{AutoHideDelay: time.Minute},
		)
		o.Start()

		o.Activate()
		time.Sleep(cancelAfter)
		o.Cancel()

		// let every straggler drain, then verify idle and nothing after hide
		time.Sleep(30 * time.Millisecond)
		if st := o.State(); st != StateIdle && !st.Resting() {
			t.Errorf("iteration %d: state %v after cancel, want idle or rest", i, st)
		}
		if o.State() == StateIdle {
			if _, ok := o.Current(); ok {
				t.Errorf("iteration %d: idle but session still present", i)
			}
		}
		o.Close()

		// a session that finished before the cancel landed is fine; one
		// cancelled mid-flight must show no views beyond the cancel point
		surf.mu.Lock()
		for j := 1; j < len(surf.views); j++ {
			if surf.views[j].State == StateCapturing && surf.views[j-1].State.InFlight() {
				t.Errorf("iteration %d: new session started without user gesture", i)
			}
		}
		surf.mu.Unlock()
	}
}

func TestDisplayOrdering(t *testing.T) {
	surf := newFakeSurface()
	o := New(
		captureFunc(func(ctx context.Context) (string, error) { return "q", nil }),
		queryFunc(func(ctx context.Context, transcript string) (string, error) { return "a", nil }),
		okSpeaker(),
		surf,
		Options{AutoHideDelay: time.Minute},
	)
	o.Start()
	defer o.Close()

	o.Activate()
	want := []State{StateCapturing, StateThinking, StateSpeaking, StateDone}
	for _, st := range want {
		waitView(t, surf, st)
	}
}
