// Package assistant drives one hotkey activation through the
// capture → inference → playback pipeline.
//
// A single control goroutine owns all session state. Collaborator calls run
// on their own goroutines and deliver results back through the inbox tagged
// with the generation token they were dispatched under; a result whose token
// no longer matches the current session is discarded, which is the only
// mechanism protecting against late completions from cancelled or superseded
// sessions.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sova/log"
)

const defaultAutoHideDelay = 5 * time.Second

// Status lines pushed alongside each state.
const (
	statusListening = "Listening…"
	statusThinking  = "Thinking…"
	statusAnswer    = "Answer:"
	statusNoSpeech  = "Could not understand — try speaking again"
)

// Options configures an Orchestrator.
type Options struct {
	// AutoHideDelay is how long a finished session stays visible before
	// the overlay hides itself.
	AutoHideDelay time.Duration
}

// control events
type activateEvent struct{}
type cancelEvent struct{}

// inbox events
type stageResult struct {
	stage Stage
	gen   uint64
	text  string
	err   error
}

type hideDeadline struct {
	gen uint64
}

// Orchestrator owns the session lifecycle. Exactly one session is in flight
// at any time; a second activation while one is running cancels it.
type Orchestrator struct {
	capturer   Capturer
	inferencer Inferencer
	speaker    Speaker
	surface    Surface
	hideDelay  time.Duration

	ctrl  chan any
	inbox chan any
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	// loop-owned; gen equals the active session's ID and is bumped past it
	// on cancel so late results can never match again
	gen       uint64
	runCtx    context.Context
	runCancel context.CancelFunc
	hideTimer *time.Timer

	mu    sync.Mutex
	state State
	sess  *Session
}

func New(c Capturer, i Inferencer, s Speaker, surf Surface, opts Options) *Orchestrator {
	if opts.AutoHideDelay <= 0 {
		opts.AutoHideDelay = defaultAutoHideDelay
	}
	return &Orchestrator{
		capturer:   c,
		inferencer: i,
		speaker:    s,
		surface:    surf,
		hideDelay:  opts.AutoHideDelay,
		ctrl:       make(chan any, 16),
		inbox:      make(chan any, 16),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      StateIdle,
	}
}

// Start launches the control goroutine.
func (o *Orchestrator) Start() {
	go o.loop()
}

// Close stops the control goroutine and cancels any in-flight session.
func (o *Orchestrator) Close() {
	o.once.Do(func() { close(o.quit) })
	<-o.done
}

// Activate handles a hotkey or tray trigger. From idle or a rest state it
// starts a new session; while a session is in flight it cancels it instead.
func (o *Orchestrator) Activate() { o.send(activateEvent{}) }

// Cancel dismisses the current session and hides the overlay immediately.
func (o *Orchestrator) Cancel() { o.send(cancelEvent{}) }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns a copy of the active session, if any.
func (o *Orchestrator) Current() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return Session{}, false
	}
	return *o.sess, true
}

func (o *Orchestrator) send(ev any) {
	select {
	case o.ctrl <- ev:
	case <-o.quit:
	}
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			o.shutdown()
			return
		case ev := <-o.ctrl:
			o.handleControl(ev)
		case ev := <-o.inbox:
			// A pending user gesture always outranks an in-flight
			// completion; any control events queued while we were
			// blocked run first, and the token check then turns the
			// held result into a no-op if they invalidated it.
			o.drainControl()
			o.handleInbox(ev)
		}
	}
}

func (o *Orchestrator) drainControl() {
	for {
		select {
		case ev := <-o.ctrl:
			o.handleControl(ev)
		default:
			return
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.disarmHide()
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
}

func (o *Orchestrator) handleControl(ev any) {
	switch ev.(type) {
	case activateEvent:
		if o.State().InFlight() {
			o.cancelSession("superseded")
			return
		}
		o.startSession()
	case cancelEvent:
		if o.State() != StateIdle {
			o.cancelSession("dismissed")
		}
	}
}

func (o *Orchestrator) handleInbox(ev any) {
	switch ev := ev.(type) {
	case stageResult:
		o.handleResult(ev)
	case hideDeadline:
		o.handleHide(ev)
	}
}

func (o *Orchestrator) startSession() {
	o.disarmHide()
	if o.runCancel != nil {
		o.runCancel()
	}
	o.gen++
	ctx, cancel := context.WithCancel(context.Background())
	o.runCtx = ctx
	o.runCancel = cancel

	sess := &Session{ID: o.gen, State: StateCapturing}
	o.setSession(sess, StateCapturing)
	log.Infof("session %d: listening", sess.ID)
	o.surface.Update(View{State: StateCapturing, Status: statusListening})

	o.dispatch(StageCapture, sess.ID, func() (string, error) {
		return o.capturer.Capture(ctx)
	})
}

func (o *Orchestrator) cancelSession(reason string) {
	o.disarmHide()
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	// burn the token so any late completion can never match again
	o.gen++
	o.setSession(nil, StateIdle)
	log.Infof("session %s", reason)
	o.surface.Hide()
}

// dispatch runs one blocking collaborator call off the control goroutine and
// delivers its result back through the inbox tagged with the session token.
func (o *Orchestrator) dispatch(stage Stage, gen uint64, call func() (string, error)) {
	go func() {
		text, err := call()
		select {
		case o.inbox <- stageResult{stage: stage, gen: gen, text: text, err: err}:
		case <-o.quit:
		}
	}()
}

func (o *Orchestrator) handleResult(r stageResult) {
	o.mu.Lock()
	sess := o.sess
	o.mu.Unlock()
	if sess == nil || r.gen != sess.ID {
		log.Infof("stale %s result discarded", r.stage)
		return
	}

	switch r.stage {
	case StageCapture:
		o.onCapture(sess, r)
	case StageInference:
		o.onInference(sess, r)
	case StagePlayback:
		o.onPlayback(sess, r)
	}
}

func (o *Orchestrator) onCapture(sess *Session, r stageResult) {
	transcript := strings.TrimSpace(r.text)
	err := r.err
	if err == nil && transcript == "" {
		err = ErrNoSpeech
	}
	if err != nil {
		o.fail(sess, StageCapture, err)
		return
	}

	sess.Transcript = transcript
	o.setSession(sess, StateThinking)
	log.Infof("session %d: heard %q", sess.ID, transcript)
	o.surface.Update(View{State: StateThinking, Status: statusThinking, Text: transcript})

	ctx := o.runCtx
	o.dispatch(StageInference, sess.ID, func() (string, error) {
		return o.inferencer.Query(ctx, transcript)
	})
}

func (o *Orchestrator) onInference(sess *Session, r stageResult) {
	if r.err != nil {
		o.fail(sess, StageInference, r.err)
		return
	}

	reply := strings.TrimSpace(r.text)
	sess.Reply = reply
	o.setSession(sess, StateSpeaking)
	log.Exchange(sess.Transcript, reply)
	o.surface.Update(View{State: StateSpeaking, Status: statusAnswer, Text: reply})

	ctx := o.runCtx
	o.dispatch(StagePlayback, sess.ID, func() (string, error) {
		return "", o.speaker.Speak(ctx, reply)
	})
}

func (o *Orchestrator) onPlayback(sess *Session, r stageResult) {
	if r.err != nil {
		o.fail(sess, StagePlayback, r.err)
		return
	}

	o.setSession(sess, StateDone)
	o.releaseRun()
	log.Infof("session %d: done", sess.ID)
	o.surface.Update(View{State: StateDone, Status: statusAnswer, Text: sess.Reply})
	o.armHide(sess.ID)
}

func (o *Orchestrator) fail(sess *Session, stage Stage, err error) {
	serr := &StageError{Stage: stage, Err: err}
	sess.Err = serr
	st := failState(stage)
	o.setSession(sess, st)
	o.releaseRun()
	log.Errorf("session %d: %v", sess.ID, serr)

	v := View{State: st, Status: failStatus(stage, err), Err: serr}
	if stage == StagePlayback {
		// audio failed but the reply is still worth reading
		v.Text = sess.Reply
	}
	o.surface.Update(v)
	o.armHide(sess.ID)
}

func (o *Orchestrator) armHide(gen uint64) {
	o.disarmHide()
	o.hideTimer = time.AfterFunc(o.hideDelay, func() {
		select {
		case o.inbox <- hideDeadline{gen: gen}:
		case <-o.quit:
		}
	})
}

func (o *Orchestrator) disarmHide() {
	if o.hideTimer != nil {
		o.hideTimer.Stop()
		o.hideTimer = nil
	}
}

func (o *Orchestrator) handleHide(ev hideDeadline) {
	o.mu.Lock()
	sess := o.sess
	o.mu.Unlock()
	if sess == nil || ev.gen != sess.ID || !sess.State.Resting() {
		return
	}
	o.setSession(nil, StateIdle)
	o.surface.Hide()
}

func (o *Orchestrator) setSession(sess *Session, st State) {
	o.mu.Lock()
	o.sess = sess
	o.state = st
	if sess != nil {
		sess.State = st
	}
	o.mu.Unlock()
}

func (o *Orchestrator) releaseRun() {
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
}

func failState(stage Stage) State {
	switch stage {
	case StageCapture:
		return StateCaptureFailed
	case StageInference:
		return StateInferenceFailed
	default:
		return StatePlaybackFailed
	}
}

func failStatus(stage Stage, err error) string {
	switch stage {
	case StageCapture:
		if errors.Is(err, ErrNoSpeech) {
			return statusNoSpeech
		}
		return "Capture failed: " + err.Error()
	case StageInference:
		return "Assistant unreachable: " + err.Error()
	default:
		return "Playback failed: " + err.Error()
	}
}
