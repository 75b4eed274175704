package tts

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Edge synthesizes speech over the websocket endpoint the Edge
// browser's Read Aloud feature uses. One connection serves one
// utterance: speech.config, then the SSML request, then binary audio
// frames until turn.end.
const (
	edgeWSSHost        = "speech.platform.bing.com"
	edgeTrustedToken   = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeOutputFormat   = "raw-24khz-16bit-mono-pcm"
	edgeHandshakeDelay = 10 * time.Second
)

type Edge struct {
	voice  string
	url    string
	dialer *websocket.Dialer
}

func NewEdge(voice string) *Edge {
	return &Edge{
		voice: voice,
		url: fmt.Sprintf(
			"wss://%s/consumer/speech/synthesize/readaloud/edge/v1?TrustedClientToken=%s",
			edgeWSSHost, edgeTrustedToken),
		dialer: &websocket.Dialer{HandshakeTimeout: edgeHandshakeDelay},
	}
}

func (e *Edge) Name() string { return "edge-tts" }

func (e *Edge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	header := http.Header{}
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("Origin", "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold")

	conn, _, err := e.dialer.DialContext(ctx, e.url+"&ConnectionId="+newRequestID(), header)
	if err != nil {
		return nil, fmt.Errorf("edge-tts dial: %w", err)
	}
	defer conn.Close()

	// The websocket read path doesn't take a context; tear the
	// connection down when the caller cancels so reads unblock.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	ts := time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")

	speechConfig := "X-Timestamp:" + ts + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{` +
		`"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + edgeOutputFormat + `"}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(speechConfig)); err != nil {
		return nil, fmt.Errorf("edge-tts speech.config: %w", err)
	}

	requestID := newRequestID()
	ssml := "X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + ts + "\r\n" +
		"Path:ssml\r\n\r\n" +
		e.buildSSML(text)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssml)); err != nil {
		return nil, fmt.Errorf("edge-tts ssml: %w", err)
	}

	var pcm []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("edge-tts read: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				return pcm, nil
			}
		case websocket.BinaryMessage:
			payload, ok := audioPayload(data)
			if ok {
				pcm = append(pcm, payload...)
			}
		}
	}
}

func (e *Edge) buildSSML(text string) string {
	var escaped strings.Builder
	for _, r := range text {
		switch r {
		case '&':
			escaped.WriteString("&amp;")
		case '<':
			escaped.WriteString("&lt;")
		case '>':
			escaped.WriteString("&gt;")
		default:
			escaped.WriteRune(r)
		}
	}
	return "<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>" +
		"<voice name='" + e.voice + "'>" + escaped.String() + "</voice></speak>"
}

// audioPayload extracts the PCM body from a binary frame. The frame
// starts with a big-endian header length, then text headers, then
// audio. Frames without Path:audio carry no sound.
func audioPayload(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+headerLen {
		return nil, false
	}
	header := string(data[2 : 2+headerLen])
	// Path:audio.metadata frames carry JSON, not sound; match the
	// header line exactly.
	for _, line := range strings.Split(header, "\r\n") {
		if line == "Path:audio" {
			return data[2+headerLen:], true
		}
	}
	return nil, false
}

func newRequestID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
