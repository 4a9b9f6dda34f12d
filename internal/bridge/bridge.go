package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sebas/voicegate/internal/agent"
	"github.com/sebas/voicegate/internal/dialer"
	"github.com/sebas/voicegate/internal/media"
	"github.com/sebas/voicegate/internal/metrics"
	"github.com/sebas/voicegate/internal/session"
)

const (
	// outQueueSize bounds agent audio waiting for the dialer socket. At one
	// frame per 20ms this is several seconds of speech.
	outQueueSize = 256

	defaultAgentDialTimeout = 10 * time.Second
	defaultMaxCallDuration  = time.Hour
	defaultDrainWindow      = 500 * time.Millisecond
)

// DialerConn is the subset of the dialer WebSocket the bridge needs;
// *websocket.Conn satisfies it.
type DialerConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Config wires one bridge. Session, Adapter, Connector and Conn are
// required; Registry and Metrics may be nil in tests.
type Config struct {
	Session   *session.CallSession
	Adapter   dialer.Adapter
	Connector agent.Connector
	Conn      DialerConn
	Registry  *session.Registry
	Metrics   *metrics.Metrics

	// AgentDialTimeout bounds the agent connection handshake.
	AgentDialTimeout time.Duration
	// MaxCallDuration force-ends calls that run too long.
	MaxCallDuration time.Duration
	// DrainWindow is how long teardown waits for queued agent audio to
	// reach the dialer when the agent finished speaking first.
	DrainWindow time.Duration
}

type outFrame struct {
	gen  uint64
	data []byte
}

// Bridge relays one call. The dialer read loop runs on the caller's
// goroutine; agent events and dialer writes each get their own, so neither
// socket ever has two writers.
type Bridge struct {
	cfg        Config
	log        *slog.Logger
	transcoder media.Transcoder

	outCh chan outFrame
	// gen stamps outbound frames; an interruption bumps it, making every
	// frame queued before the bump stale.
	gen        atomic.Uint64
	closing    chan struct{}
	closed     atomic.Bool
	draining   atomic.Bool
	writerDone chan struct{}
	wg         sync.WaitGroup

	mu       sync.Mutex
	stream   agent.Stream
	maxTimer *time.Timer
}

// New creates a bridge for an admitted session.
func New(cfg Config) *Bridge {
	if cfg.AgentDialTimeout <= 0 {
		cfg.AgentDialTimeout = defaultAgentDialTimeout
	}
	if cfg.MaxCallDuration <= 0 {
		cfg.MaxCallDuration = defaultMaxCallDuration
	}
	if cfg.DrainWindow <= 0 {
		cfg.DrainWindow = defaultDrainWindow
	}
	return &Bridge{
		cfg:        cfg,
		log:        slog.With("session_id", cfg.Session.SessionID),
		transcoder: cfg.Adapter.NewTranscoder(),
		outCh:      make(chan outFrame, outQueueSize),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ForceEnd terminates the call from outside, for the monitoring API and
// process shutdown. It returns without waiting for teardown to finish.
func (b *Bridge) ForceEnd() { go b.shutdown(CauseForced) }

// Run relays until the call ends, then finalizes the session. The returned
// error is non-nil only when the agent leg could not be established; normal
// hangups from either side return nil.
func (b *Bridge) Run(ctx context.Context) error {
	b.log.Info("[Bridge] Call bridge starting", "vendor", b.cfg.Adapter.Name())

	b.wg.Add(1)
	go b.writeLoop()

	setupErr := b.readLoop(ctx)

	b.wg.Wait()
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream != nil {
		// Drain remaining agent events so its read loop can exit.
		for range stream.Events() {
		}
	}

	if b.cfg.Registry != nil {
		b.cfg.Registry.Finalize(b.cfg.Session)
	}
	b.log.Info("[Bridge] Call bridge finished",
		"cause", b.cfg.Session.Cause(),
		"duration", b.cfg.Session.Duration().Round(time.Millisecond))
	return setupErr
}

// readLoop consumes the dialer socket until the call ends. The start event
// triggers the agent connection; a failure there is the only error returned.
func (b *Bridge) readLoop(ctx context.Context) error {
	defer b.shutdown(CauseDialerClosed)

	for {
		_, raw, err := b.cfg.Conn.ReadMessage()
		if err != nil {
			if !b.closed.Load() {
				b.log.Info("[Bridge] Dialer connection closed", "error", err)
			}
			return nil
		}

		ev, err := b.cfg.Adapter.Handler().ParseIncoming(raw)
		if err != nil {
			b.countProtocolError()
			b.log.Warn("[Bridge] Dropping undecodable dialer message", "error", err)
			continue
		}

		switch ev.Kind {
		case dialer.KindStart:
			if err := b.handleStart(ctx, ev); err != nil {
				b.shutdown(CauseSetupFailed)
				return err
			}

		case dialer.KindMedia:
			b.handleMedia(ev)

		case dialer.KindDTMF:
			// Tones are surfaced in the caller's audio; the digit event is
			// informational only.
			b.log.Info("[Bridge] DTMF received", "digit", ev.Digit)

		case dialer.KindMark:
			b.log.Debug("[Bridge] Mark acknowledged", "name", ev.MarkName)

		case dialer.KindStop:
			b.log.Info("[Bridge] Dialer signaled stop", "call_id", ev.CallID)
			b.shutdown(CauseDialerStop)
			return nil

		default:
			b.log.Debug("[Bridge] Ignoring dialer event", "type", ev.RawType)
		}
	}
}

func (b *Bridge) handleStart(ctx context.Context, ev dialer.Event) error {
	sess := b.cfg.Session
	b.log.Info("[Bridge] Media stream started",
		"call_id", ev.CallID, "stream_id", ev.StreamID, "agent_id", sess.AgentID)

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.AgentDialTimeout)
	stream, err := b.cfg.Connector.Connect(dialCtx, sess.AgentID, sess.DynamicVariables)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting agent %s: %w", sess.AgentID, err)
	}

	if err := sess.Activate(ev.CallID, ev.StreamID); err != nil {
		stream.Close()
		return err
	}

	b.mu.Lock()
	b.stream = stream
	b.maxTimer = time.AfterFunc(b.cfg.MaxCallDuration, func() {
		b.log.Warn("[Bridge] Maximum call duration reached")
		b.shutdown(CauseTimeout)
	})
	b.mu.Unlock()

	b.wg.Add(1)
	go b.agentLoop(stream, ev.StreamID)
	return nil
}

func (b *Bridge) handleMedia(ev dialer.Event) {
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		// Media before start is a vendor protocol violation.
		b.countProtocolError()
		return
	}

	pcm, err := b.transcoder.ToCanonical(ev.Payload)
	if err != nil {
		b.countConversionError(err)
		return
	}
	if err := stream.SendAudio(pcm); err != nil {
		if !b.closed.Load() {
			b.log.Warn("[Bridge] Agent send failed", "error", err)
			b.shutdown(CauseError)
		}
		return
	}

	b.cfg.Session.FramesToAgent.Add(1)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.FramesToAgent.Inc()
	}
}

// agentLoop consumes agent events, transcoding speech into the outbound
// queue and translating barge-in into a flush.
func (b *Bridge) agentLoop(stream agent.Stream, streamID string) {
	defer b.wg.Done()

	builder := b.cfg.Adapter.MessageBuilder()

	for ev := range stream.Events() {
		switch ev.Kind {
		case agent.KindAudio:
			payload, err := b.transcoder.FromCanonical(ev.Audio)
			if err != nil {
				b.countConversionError(err)
				continue
			}
			if len(payload) == 0 {
				continue
			}
			msg, err := builder.BuildAudioMessage(streamID, payload)
			if err != nil {
				b.countProtocolError()
				continue
			}
			b.enqueue(outFrame{gen: b.gen.Load(), data: msg})

		case agent.KindInterruption:
			b.flushPending(builder, streamID)

		case agent.KindAgentResponse:
			b.log.Info("[Bridge] Agent said", "text", ev.Text)

		case agent.KindUserTranscript:
			b.log.Info("[Bridge] Caller said", "text", ev.Text)

		case agent.KindMetadata:
			b.log.Debug("[Bridge] Agent event", "type", ev.Raw)

		case agent.KindClosed:
			if ev.Err != nil {
				b.log.Warn("[Bridge] Agent stream failed", "error", ev.Err)
				b.shutdown(CauseError)
			} else {
				b.log.Info("[Bridge] Agent ended the conversation")
				b.shutdown(CauseAgentClosed)
			}
			return
		}
	}
}

// flushPending invalidates every queued audio frame and tells the vendor to
// discard its own playback buffer. Frames already dequeued are skipped by
// the writer's generation check, so no stale audio follows the flush.
func (b *Bridge) flushPending(builder dialer.MessageBuilder, streamID string) {
	gen := b.gen.Add(1)

drain:
	for {
		select {
		case <-b.outCh:
		default:
			break drain
		}
	}

	b.log.Info("[Bridge] Barge-in, flushing queued audio")
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.Interruptions.Inc()
	}

	msg, err := builder.BuildClearMessage(streamID)
	if err != nil {
		b.countProtocolError()
		return
	}
	b.enqueue(outFrame{gen: gen, data: msg})
}

func (b *Bridge) enqueue(f outFrame) {
	select {
	case b.outCh <- f:
	case <-b.closing:
	default:
		// Queue full: the dialer socket is not keeping up. Dropping the
		// oldest frame would reorder audio, so drop the newest.
		b.log.Warn("[Bridge] Outbound queue full, dropping frame")
	}
}

// writeLoop is the sole writer on the dialer socket. When teardown wants a
// flush it keeps delivering until the queue is empty or the drain deadline
// passes; shutdown holds the socket open until writerDone closes.
func (b *Bridge) writeLoop() {
	defer b.wg.Done()
	defer close(b.writerDone)

	for {
		select {
		case f := <-b.outCh:
			if !b.writeFrame(f) {
				return
			}

		case <-b.closing:
			if b.draining.Load() {
				b.flushRemaining()
			}
			return
		}
	}
}

// writeFrame delivers one frame unless it predates the current generation.
// Returns false when the socket is no longer usable.
func (b *Bridge) writeFrame(f outFrame) bool {
	if f.gen < b.gen.Load() {
		return true
	}
	if err := b.cfg.Conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
		if !b.closed.Load() {
			b.log.Warn("[Bridge] Dialer write failed", "error", err)
			b.shutdown(CauseError)
		}
		return false
	}
	b.cfg.Session.FramesToDialer.Add(1)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.FramesToDialer.Inc()
	}
	return true
}

// flushRemaining delivers queued frames until the queue is empty or the
// drain window elapses.
func (b *Bridge) flushRemaining() {
	deadline := time.NewTimer(b.cfg.DrainWindow)
	defer deadline.Stop()

	for {
		select {
		case f := <-b.outCh:
			if !b.writeFrame(f) {
				return
			}
		case <-deadline.C:
			b.log.Warn("[Bridge] Drain window elapsed with frames still queued",
				"queued", len(b.outCh))
			return
		default:
			return
		}
	}
}

// shutdown begins teardown exactly once. The cause of the first caller is
// recorded; everyone else returns immediately.
func (b *Bridge) shutdown(cause Cause) {
	if !b.cfg.Session.BeginEnding(cause.String()) {
		return
	}
	b.log.Info("[Bridge] Ending call", "cause", cause)

	b.mu.Lock()
	if b.maxTimer != nil {
		b.maxTimer.Stop()
	}
	stream := b.stream
	b.mu.Unlock()

	// The agent finished speaking; its final audio gets a bounded window to
	// reach the dialer before the socket closes. The writer owns the flush
	// so frames it has already dequeued are delivered too.
	if cause == CauseAgentClosed {
		b.draining.Store(true)
	}

	b.closed.Store(true)
	close(b.closing)

	if b.draining.Load() {
		select {
		case <-b.writerDone:
		case <-time.After(b.cfg.DrainWindow + time.Second):
		}
	}

	if stream != nil {
		stream.Close()
	}
	b.cfg.Conn.Close()
}

func (b *Bridge) countConversionError(err error) {
	b.cfg.Session.ConversionErrors.Add(1)
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.ConversionErrors.Inc()
	}
	b.log.Warn("[Bridge] Dropping unconvertible frame", "error", err)
}

func (b *Bridge) countProtocolError() {
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.ProtocolErrors.Inc()
	}
}
