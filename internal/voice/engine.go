package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/domain/repositories"
)

const subscriberBuffer = 64

// ErrNoRecognizer is returned when the local path is elected but no local
// recognizer was provided.
var ErrNoRecognizer = errors.New("no local recognizer available")

// CommitFunc receives a final transcript segment for the composer's text
// buffer. Interim text never reaches it.
type CommitFunc func(segment string)

// Engine captures spoken input and delivers transcribed text into the
// composer, masking which backend produced it. Exactly one recording session
// is active at a time; the microphone is released unconditionally on stop,
// even when a pending transcription request is later abandoned.
type Engine struct {
	cloud   repositories.Transcriber
	local   repositories.LocalRecognizer
	capture repositories.AudioCapture
	commit  CommitFunc
	config  repositories.AudioConfig
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	session *entities.RecordingSession
	buffer  []byte
	gen     int
	subs    map[int]chan entities.RecordingSession
	nextSub int
}

// NewEngine creates a voice capture engine. cloud may be nil, forcing the
// local path; a Start that elects the local path without a local recognizer
// returns ErrNoRecognizer.
func NewEngine(
	cloud repositories.Transcriber,
	local repositories.LocalRecognizer,
	capture repositories.AudioCapture,
	config repositories.AudioConfig,
	timeout time.Duration,
	commit CommitFunc,
	logger *zap.Logger,
) *Engine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		cloud:   cloud,
		local:   local,
		capture: capture,
		commit:  commit,
		config:  config,
		timeout: timeout,
		logger:  logger,
		subs:    make(map[int]chan entities.RecordingSession),
	}
}

// Start begins a recording session, or stops the active one: recording is a
// toggle, not a stack.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.session != nil && e.session.Active() {
		e.mu.Unlock()
		return e.Stop(ctx)
	}

	engine := entities.RecordingEngineLocal
	if e.cloud != nil && e.cloud.Available(ctx) {
		engine = entities.RecordingEngineCloud
	}
	if engine == entities.RecordingEngineLocal && e.local == nil {
		e.mu.Unlock()
		return ErrNoRecognizer
	}

	e.gen++
	gen := e.gen
	e.session = entities.NewRecordingSession(engine)
	e.buffer = nil
	session := *e.session
	e.mu.Unlock()

	chunks, err := e.capture.Acquire(ctx, e.config)
	if err != nil {
		e.failSession(gen, "microphone unavailable: "+err.Error())
		return err
	}

	e.logger.Info("Recording started", zap.String("engine", string(engine)))
	e.publish(session)

	if engine == entities.RecordingEngineCloud {
		go e.bufferChunks(gen, chunks)
		return nil
	}

	events, err := e.local.Recognize(ctx, chunks, e.config)
	if err != nil {
		e.capture.Release()
		e.failSession(gen, "local recognizer unavailable: "+err.Error())
		return err
	}
	go e.consumeLocal(gen, events)
	return nil
}

// Stop ends the active session. The microphone is released before any
// transcription work begins, so a hung provider cannot pin the device.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil || !e.session.Active() {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	engine := e.session.Engine
	e.session.State = entities.RecordingStateTranscribing
	session := *e.session
	e.mu.Unlock()

	// Always release, regardless of what transcription does next. Closing
	// the capture channel also ends the local recognizer's event stream.
	if err := e.capture.Release(); err != nil {
		e.logger.Warn("Microphone release failed", zap.Error(err))
	}

	e.publish(session)

	if engine == entities.RecordingEngineCloud {
		e.mu.Lock()
		audio := e.buffer
		e.buffer = nil
		e.mu.Unlock()
		go e.transcribeCloud(gen, audio)
	}
	// Local sessions finish through consumeLocal once the event stream
	// drains.

	return nil
}

// Snapshot returns the current recording session state.
func (e *Engine) Snapshot() entities.RecordingSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return entities.RecordingSession{State: entities.RecordingStateIdle}
	}
	return *e.session
}

// Subscribe registers a consumer of recording state changes.
func (e *Engine) Subscribe() (<-chan entities.RecordingSession, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan entities.RecordingSession, subscriberBuffer)
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

// bufferChunks accumulates cloud-path audio until the capture closes.
func (e *Engine) bufferChunks(gen int, chunks <-chan []byte) {
	for chunk := range chunks {
		e.mu.Lock()
		if gen == e.gen {
			e.buffer = append(e.buffer, chunk...)
		}
		e.mu.Unlock()
	}
}

// consumeLocal applies recognizer events: interim text is shown but not
// committed, final segments go straight to the composer buffer.
func (e *Engine) consumeLocal(gen int, events <-chan repositories.TranscriptEvent) {
	for ev := range events {
		e.mu.Lock()
		if gen != e.gen || e.session == nil {
			e.mu.Unlock()
			continue
		}
		if ev.Final {
			e.session.AppendFinal(ev.Text)
		} else {
			e.session.InterimText = ev.Text
		}
		session := *e.session
		e.mu.Unlock()

		if ev.Final && ev.Text != "" {
			e.commit(ev.Text)
		}
		e.publish(session)
	}

	e.finishSession(gen)
}

// transcribeCloud sends the buffered recording to the cloud provider, with
// one automatic local fallback on transport failure. Authorization failures
// skip the fallback and surface: retrying a permission failure locally only
// wastes a recording cycle.
func (e *Engine) transcribeCloud(gen int, audio []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	text, err := e.cloud.Transcribe(ctx, audio, e.config)
	if err == nil {
		if text != "" {
			e.commit(text)
		}
		e.finishSession(gen)
		return
	}

	if errors.Is(err, repositories.ErrUnauthorized) {
		e.logger.Warn("Cloud transcription unauthorized, no fallback", zap.Error(err))
		e.failSession(gen, err.Error())
		return
	}

	e.logger.Warn("Cloud transcription failed, falling back to local recognizer", zap.Error(err))
	if err := e.recognizeBuffered(ctx, gen, audio); err != nil {
		e.failSession(gen, "cloud and local transcription failed: "+err.Error())
	}
}

// recognizeBuffered replays a buffered recording through the local
// recognizer, committing only final segments.
func (e *Engine) recognizeBuffered(ctx context.Context, gen int, audio []byte) error {
	if e.local == nil {
		return ErrNoRecognizer
	}
	replay := make(chan []byte, 1)
	events, err := e.local.Recognize(ctx, replay, e.config)
	if err != nil {
		return err
	}

	if len(audio) > 0 {
		replay <- audio
	}
	close(replay)

	for ev := range events {
		if ev.Final && ev.Text != "" {
			e.commit(ev.Text)
		}
	}

	e.finishSession(gen)
	return nil
}

func (e *Engine) finishSession(gen int) {
	e.mu.Lock()
	if gen != e.gen || e.session == nil {
		e.mu.Unlock()
		return
	}
	e.session.State = entities.RecordingStateIdle
	session := *e.session
	e.mu.Unlock()

	e.logger.Info("Recording session finished")
	e.publish(session)
}

func (e *Engine) failSession(gen int, reason string) {
	e.mu.Lock()
	if gen != e.gen || e.session == nil {
		e.mu.Unlock()
		return
	}
	e.session.State = entities.RecordingStateError
	e.session.FailReason = reason
	session := *e.session
	e.mu.Unlock()

	e.publish(session)
}

func (e *Engine) publish(session entities.RecordingSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		select {
		case sub <- session:
		default:
		}
	}
}
