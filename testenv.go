package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sova/assistant"
	"sova/log"
)

// runTestMode drives the orchestrator from stdin commands. Used with
// -fake to exercise the full pipeline against a WAV file without a
// microphone or hotkey.
func runTestMode(orch *assistant.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "ASK":
			orch.Activate()
		case "CANCEL":
			orch.Cancel()
		case "WAIT":
			waitSettled(orch)
			fmt.Println("SETTLED " + orch.State().String())
		case "QUIT":
			replyMu.Lock()
			n := sessionCount
			replyMu.Unlock()
			log.SessionEnd(n)
			os.Exit(0)
		default:
			if strings.HasPrefix(cmd, "SLEEP ") {
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
	}
	os.Exit(0)
}

// waitSettled blocks until the current session leaves its busy states.
func waitSettled(orch *assistant.Orchestrator) {
	deadline := time.Now().Add(60 * time.Second)

	// Activation is asynchronous; give the session a moment to start.
	started := time.Now().Add(2 * time.Second)
	for time.Now().Before(started) && orch.State() == assistant.StateIdle {
		time.Sleep(20 * time.Millisecond)
	}

	for time.Now().Before(deadline) && orch.State().InFlight() {
		time.Sleep(20 * time.Millisecond)
	}
}
