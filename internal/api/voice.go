package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/lingoxa/internal/app"
	"github.com/MrWong99/lingoxa/internal/observe"
	"github.com/MrWong99/lingoxa/internal/speech"
	"github.com/MrWong99/lingoxa/pkg/audio"
)

// voiceReadLimit caps one client frame. Microphone frames are small; the
// limit only guards against misbehaving clients.
const voiceReadLimit = 1 << 20

// Client commands on the voice channel.
const (
	cmdPlay         = "play"
	cmdStop         = "stop"
	cmdCapture      = "capture"
	cmdCaptureError = "capture_error"
	cmdAcknowledge  = "acknowledge"
)

// reasonPermissionDenied is the capture_error reason for a refused
// microphone.
const reasonPermissionDenied = "permission_denied"

type voiceCommand struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type readyEvent struct {
	Type       string              `json:"type"`
	Playback   bool                `json:"playback"`
	Capture    bool                `json:"capture"`
	InputState speech.CaptureState `json:"capture_state"`
}

type playbackEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

type captureEvent struct {
	Type    string              `json:"type"`
	State   speech.CaptureState `json:"state"`
	Text    string              `json:"text,omitempty"`
	Partial string              `json:"partial,omitempty"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleVoice handles GET /v1/sessions/{id}/voice. Microphone PCM arrives
// as binary frames in the format given by the sample_rate and channels
// query parameters (default 16 kHz mono); synthesized PCM is sent back as
// binary frames.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	e, err := s.entry(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	input, err := inputFormat(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		observe.Logger(r.Context()).Warn("voice: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(voiceReadLimit)

	v := &voiceConn{conn: conn, entry: e}
	v.player, v.capture = s.app.NewVoice(e, app.VoiceOptions{
		Input: input,
		Sink: func(ctx context.Context, pcm []byte) error {
			return conn.Write(ctx, websocket.MessageBinary, pcm)
		},
		OnPlayback: func(id string) {
			v.send(r.Context(), playbackEvent{Type: "playback", MessageID: id})
		},
		OnPartial: func(text string) {
			v.send(r.Context(), captureEvent{Type: "capture", State: speech.CaptureCapturing, Partial: text})
		},
	})
	defer func() {
		v.player.Stop()
		v.capture.Fail(nil)
	}()

	err = v.serve(r.Context())
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		conn.Close(websocket.StatusNormalClosure, "")
	default:
		if err != nil && r.Context().Err() == nil {
			observe.Logger(r.Context()).Debug("voice: connection ended", "session_id", e.Session.ID(), "err", err)
		}
	}
}

// inputFormat reads the microphone format from the query string.
func inputFormat(r *http.Request) (audio.Format, error) {
	f := audio.Recognition
	q := r.URL.Query()
	if raw := q.Get("sample_rate"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return audio.Format{}, errors.Join(errBadRequest, err)
		}
		f.SampleRate = n
	}
	if raw := q.Get("channels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return audio.Format{}, errors.Join(errBadRequest, err)
		}
		f.Channels = n
	}
	if !f.Valid() {
		return audio.Format{}, errors.Join(errBadRequest, errors.New("unsupported audio format "+f.String()))
	}
	return f, nil
}

// voiceConn is one voice websocket bound to a session.
type voiceConn struct {
	conn    *websocket.Conn
	entry   *app.Entry
	player  *speech.Player
	capture *speech.Capture
}

func (v *voiceConn) serve(ctx context.Context) error {
	v.send(ctx, readyEvent{
		Type:       "ready",
		Playback:   v.player.Available(),
		Capture:    v.capture.Available(),
		InputState: v.capture.State(),
	})
	for {
		typ, data, err := v.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			if err := v.capture.Write(data); err != nil && !errors.Is(err, speech.ErrNotCapturing) {
				observe.Logger(ctx).Warn("voice: forward audio failed", "err", err)
			}
			continue
		}
		var cmd voiceCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			v.fail(ctx, errors.Join(errBadRequest, err))
			continue
		}
		v.handle(ctx, cmd)
	}
}

func (v *voiceConn) handle(ctx context.Context, cmd voiceCommand) {
	switch cmd.Type {
	case cmdPlay:
		msg, ok := v.entry.Session.Message(cmd.MessageID)
		if !ok {
			v.fail(ctx, errors.New("unknown message "+strconv.Quote(cmd.MessageID)))
			return
		}
		if _, err := v.player.Toggle(ctx, msg.ID, msg.Text); err != nil {
			v.fail(ctx, err)
		}
	case cmdStop:
		v.player.Stop()
	case cmdCapture:
		state, text, err := v.capture.Toggle(ctx)
		v.send(ctx, captureEvent{Type: "capture", State: state, Text: text})
		if err != nil {
			v.fail(ctx, err)
		}
	case cmdCaptureError:
		cause := errors.New(cmd.Reason)
		if cmd.Reason == reasonPermissionDenied {
			cause = speech.ErrPermissionDenied
		}
		v.send(ctx, captureEvent{Type: "capture", State: v.capture.Fail(cause)})
	case cmdAcknowledge:
		v.send(ctx, captureEvent{Type: "capture", State: v.capture.Acknowledge()})
	default:
		v.fail(ctx, errors.New("unknown command "+strconv.Quote(cmd.Type)))
	}
}

func (v *voiceConn) fail(ctx context.Context, err error) {
	v.send(ctx, errorEvent{Type: "error", Error: err.Error()})
}

func (v *voiceConn) send(ctx context.Context, event any) {
	if err := wsjson.Write(ctx, v.conn, event); err != nil && ctx.Err() == nil {
		observe.Logger(ctx).Debug("voice: send event failed", "err", err)
	}
}
