package playback

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/store"
)

// Defaults.
const (
	DefaultSampleInterval = time.Second
	DefaultPersistEvery   = 5
	DefaultResumeRewind   = 2.0

	// NoRewind resumes exactly at the saved position.
	NoRewind = -1.0
)

// User-facing messages.
const (
	msgCompleted  = "Video completed! Great job!"
	msgLoadFailed = "Error loading video player. Please refresh the page."
	msgFault      = "Error loading video. Please try again."
)

// ProgressWriter is the part of the progress store the controller needs.
type ProgressWriter interface {
	Progress(videoID string) (domain.VideoProgress, bool)
	UpdateVideoProgress(ctx context.Context, videoID string, timestamp, duration float64, completedOverride bool) (progress.Update, error)
}

// Notifier receives user-facing toasts.
type Notifier interface {
	Push(n domain.Notification) domain.Notification
}

// Config tunes sampling.
type Config struct {
	// SampleInterval is the period of the sampling ticker.
	SampleInterval time.Duration
	// PersistEvery writes progress on whole seconds divisible by this value.
	PersistEvery int
	// ResumeRewind is subtracted from the saved position when resuming.
	// Zero selects DefaultResumeRewind, NoRewind disables it.
	ResumeRewind float64
}

// Options configure a Controller. Loader and Writer are required.
type Options struct {
	Loader    Loader
	Writer    ProgressWriter
	Notifier  Notifier
	Emitter   store.EventEmitter
	Logger    *slog.Logger
	NewTicker TickerFunc
	Config    Config
}

// Status is a point-in-time view of the controller.
type Status struct {
	State       State
	VideoID     string
	CurrentTime float64
	Duration    float64
	Fault       error
	Generation  uint64
}

// FaultMessage returns the fault text, or "" when there is none.
func (s Status) FaultMessage() string {
	if s.Fault == nil {
		return ""
	}
	return s.Fault.Error()
}

// Controller owns at most one playback session at a time.
type Controller struct {
	mu          sync.Mutex
	state       State
	videoID     string
	currentTime float64
	duration    float64
	fault       error
	gen         uint64
	sess        *session

	loader    Loader
	writer    ProgressWriter
	notifier  Notifier
	emitter   store.EventEmitter
	logger    *slog.Logger
	newTicker TickerFunc
	cfg       Config
}

type session struct {
	gen     uint64
	videoID string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	handle Handle
	torn   bool
	once   sync.Once

	// lastSecond is the whole second of the last aligned write. Only the
	// session goroutine touches it.
	lastSecond int
}

// setHandle attaches h. It returns false when the session was already torn
// down, in which case the caller owns h.
func (s *session) setHandle(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		return false
	}
	s.handle = h
	return true
}

// teardown cancels sampling and destroys the handle exactly once.
func (s *session) teardown() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.torn = true
		h := s.handle
		s.handle = nil
		s.mu.Unlock()
		if h != nil {
			h.Destroy()
		}
	})
}

// NewController creates an idle Controller.
func NewController(opts Options) *Controller {
	c := &Controller{
		state:     StateUninitialized,
		loader:    opts.Loader,
		writer:    opts.Writer,
		notifier:  opts.Notifier,
		emitter:   opts.Emitter,
		logger:    opts.Logger,
		newTicker: opts.NewTicker,
		cfg:       opts.Config,
	}
	if c.emitter == nil {
		c.emitter = store.NewNoopEmitter()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.newTicker == nil {
		c.newTicker = NewTicker
	}
	if c.cfg.SampleInterval <= 0 {
		c.cfg.SampleInterval = DefaultSampleInterval
	}
	if c.cfg.PersistEvery <= 0 {
		c.cfg.PersistEvery = DefaultPersistEvery
	}
	switch {
	case c.cfg.ResumeRewind == 0:
		c.cfg.ResumeRewind = DefaultResumeRewind
	case c.cfg.ResumeRewind < 0:
		c.cfg.ResumeRewind = 0
	}
	return c
}

// Open starts a session for videoID, replacing any current one. The player
// is loaded asynchronously; watch Status or the playback.state event for
// the outcome. The session lives until Close, a failure, another Open, or
// cancellation of ctx.
func (c *Controller) Open(ctx context.Context, videoID string) (Status, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Status{}, errors.ErrValidation.WithMessage("video id is required")
	}

	start := 0.0
	if rec, ok := c.writer.Progress(videoID); ok {
		start = math.Max(0, rec.Timestamp-c.cfg.ResumeRewind)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	old := c.sess
	c.gen++
	sess := &session{
		gen:        c.gen,
		videoID:    videoID,
		ctx:        sessCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		lastSecond: -1,
	}
	c.sess = sess
	c.videoID = videoID
	c.currentTime = start
	c.duration = 0
	c.fault = nil
	c.setStateLocked(StateLoading)
	status := c.statusLocked()
	c.mu.Unlock()

	if old != nil {
		old.teardown()
		<-old.done
	}

	c.logger.Info("opening playback session",
		"video_id", videoID, "generation", sess.gen, "start", start)

	go c.run(sess, start)
	return status, nil
}

// Retry reopens the failed video. It is only valid in the Failed state.
func (c *Controller) Retry(ctx context.Context) (Status, error) {
	c.mu.Lock()
	state, videoID := c.state, c.videoID
	c.mu.Unlock()

	if state != StateFailed {
		return Status{}, errors.ErrConflict.WithMessage("retry is only possible after a failure, current state is " + state.String())
	}
	return c.Open(ctx, videoID)
}

// Close ends the current session, destroys its player and waits for the
// sampling goroutine to exit. The controller returns to Uninitialized.
func (c *Controller) Close() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	if sess != nil || c.state != StateUninitialized {
		c.videoID = ""
		c.fault = nil
		c.setStateLocked(StateUninitialized)
	}
	c.mu.Unlock()

	if sess != nil {
		sess.teardown()
		<-sess.done
		c.logger.Info("closed playback session", "video_id", sess.videoID, "generation", sess.gen)
	}
}

// Status returns state, video and the last sampled position.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) run(sess *session, start float64) {
	defer close(sess.done)
	defer c.release(sess)

	h, err := c.loader.Load(sess.ctx, sess.videoID, start)
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		c.fail(sess, errors.ErrResourceAcquisition.WithCause(err), msgLoadFailed)
		return
	}
	if !sess.setHandle(h) {
		h.Destroy()
		return
	}

	c.loop(sess, h)
}

func (c *Controller) loop(sess *session, h Handle) {
	var (
		ticker Ticker
		tick   <-chan time.Time
	)
	startTicker := func() {
		if ticker == nil {
			ticker = c.newTicker(c.cfg.SampleInterval)
			tick = ticker.C()
		}
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	events := h.Events()
	for {
		select {
		case <-sess.ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				c.fail(sess, errors.ErrPlaybackFault.WithMessage("player disconnected"), msgFault)
				return
			}
			switch ev.Kind {
			case EventReady:
				startTicker()
				c.transition(sess, StateReady, h)
			case EventPlaying:
				startTicker()
				c.transition(sess, StatePlaying, h)
			case EventPaused:
				c.transition(sess, StatePaused, h)
				c.write(sess, h, false)
			case EventEnded:
				stopTicker()
				c.transition(sess, StateEnded, h)
				if c.write(sess, h, true) {
					c.toast(domain.Notification{
						Type:    domain.NotificationProgress,
						Title:   "Video completed",
						Message: msgCompleted,
					})
				}
			case EventError:
				stopTicker()
				fault := errors.ErrPlaybackFault.
					WithMessage("player error " + strconv.Itoa(ev.Code)).
					WithDetails(map[string]any{"code": ev.Code})
				c.fail(sess, fault, msgFault)
				return
			default:
				c.logger.Debug("ignoring unknown player event", "kind", ev.Kind.String())
			}

		case <-tick:
			c.sample(sess, h)
		}
	}
}

// sample reads the player and writes progress on aligned whole seconds.
func (c *Controller) sample(sess *session, h Handle) {
	t, d := h.CurrentTime(), h.Duration()

	c.mu.Lock()
	if !c.currentLocked(sess) || !c.state.sampling() {
		c.mu.Unlock()
		return
	}
	c.currentTime, c.duration = t, d
	sec := int(math.Floor(t))
	aligned := sec >= 0 && sec%c.cfg.PersistEvery == 0 && sec != sess.lastSecond
	if aligned {
		sess.lastSecond = sec
		c.writeLocked(sess, t, d, false)
	}
	c.mu.Unlock()
}

// write persists the player's position now. It reports whether the write
// belonged to the current session.
func (c *Controller) write(sess *session, h Handle, override bool) bool {
	t, d := h.CurrentTime(), h.Duration()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(sess) {
		return false
	}
	c.currentTime, c.duration = t, d
	c.writeLocked(sess, t, d, override)
	return true
}

// writeLocked runs with c.mu held so a stale session can never interleave
// a write after a newer session started.
func (c *Controller) writeLocked(sess *session, t, d float64, override bool) {
	upd, err := c.writer.UpdateVideoProgress(sess.ctx, sess.videoID, t, d, override)
	if err != nil {
		c.logger.Warn("progress write failed",
			"video_id", sess.videoID, "generation", sess.gen, "error", err)
		return
	}
	if upd.FirstCompleted {
		c.logger.Info("video completed", "video_id", sess.videoID)
	}
}

func (c *Controller) transition(sess *session, to State, h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(sess) {
		return
	}
	if to == StateReady {
		c.duration = h.Duration()
	}
	c.setStateLocked(to)
}

// fail moves a current session to Failed and releases its player.
func (c *Controller) fail(sess *session, fault error, message string) {
	c.mu.Lock()
	if !c.currentLocked(sess) {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	c.fault = fault
	c.setStateLocked(StateFailed)
	c.mu.Unlock()

	sess.teardown()
	c.logger.Warn("playback session failed",
		"video_id", sess.videoID, "generation", sess.gen, "error", fault)
	c.toast(domain.Notification{
		Type:    domain.NotificationProgress,
		Title:   "Playback error",
		Message: message,
	})
}

// release runs on every exit of the session goroutine. A session that is
// still current at that point was abandoned through its context.
func (c *Controller) release(sess *session) {
	c.mu.Lock()
	if c.currentLocked(sess) {
		c.sess = nil
		c.setStateLocked(StateUninitialized)
	}
	c.mu.Unlock()
	sess.teardown()
}

func (c *Controller) toast(n domain.Notification) {
	if c.notifier != nil {
		c.notifier.Push(n)
	}
}

func (c *Controller) currentLocked(sess *session) bool {
	return c.sess == sess && sess.gen == c.gen
}

func (c *Controller) setStateLocked(to State) {
	from := c.state
	c.state = to
	if from != to {
		c.logger.Debug("playback state changed",
			"video_id", c.videoID, "from", from.String(), "to", to.String())
	}
	c.emitter.Emit(sse.NewPlaybackStateEvent(sse.PlaybackEventData{
		State:       to.String(),
		VideoID:     c.videoID,
		CurrentTime: c.currentTime,
		Duration:    c.duration,
		Fault:       c.statusLocked().FaultMessage(),
	}))
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:       c.state,
		VideoID:     c.videoID,
		CurrentTime: c.currentTime,
		Duration:    c.duration,
		Fault:       c.fault,
		Generation:  c.gen,
	}
}
