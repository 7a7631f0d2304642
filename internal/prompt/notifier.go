// Package prompt implements the delayed chatbot prompt: a one-shot timer that
// hands a notification to a sink unless the visitor interacts first.
package prompt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreturn-api/internal/model"
	"github.com/jwalitptl/medreturn-api/pkg/logger"
	"github.com/jwalitptl/medreturn-api/pkg/metrics"
)

const (
	DefaultDelay       = 30 * time.Second
	defaultSendTimeout = 10 * time.Second
)

var (
	ErrAlreadyArmed = errors.New("prompt notifier already armed")
	ErrInteracted   = errors.New("prompt notifier already interacted with")
	ErrTornDown     = errors.New("prompt notifier torn down")
)

// Sink receives the record produced when a notifier fires.
type Sink interface {
	Send(ctx context.Context, notification *model.Notification) error
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler schedules callbacks on the runtime timer.
var SystemScheduler Scheduler = systemScheduler{}

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseArmed      Phase = "armed"
	PhaseFired      Phase = "fired"
	PhaseSuppressed Phase = "suppressed"
	PhaseTornDown   Phase = "torn_down"
)

// View is what a client renders for the prompt panel.
type View struct {
	Visible bool   `json:"visible"`
	Phase   Phase  `json:"phase"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// State is a snapshot of the notifier flags.
type State struct {
	HasInteracted bool
	IsVisible     bool
	Armed         bool
	Fired         bool
	TornDown      bool
}

// Config describes the record a notifier emits and when.
type Config struct {
	Delay     time.Duration
	Title     string
	Message   string
	Recipient uuid.UUID
}

type options struct {
	scheduler   Scheduler
	logger      *logger.Logger
	metrics     *metrics.Metrics
	sendTimeout time.Duration
}

type Option func(*options)

func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithSendTimeout(d time.Duration) Option {
	return func(o *options) { o.sendTimeout = d }
}

func buildOptions(opts []Option) options {
	o := options{
		scheduler:   SystemScheduler,
		logger:      logger.Nop(),
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Notifier is armed once and fires at most once. All flag access goes
// through mu because the timer callback runs on its own goroutine.
type Notifier struct {
	cfg  Config
	sink Sink
	opts options

	mu            sync.Mutex
	hasInteracted bool
	isVisible     bool
	armed         bool
	fired         bool
	tornDown      bool

	timer    Timer
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewNotifier(cfg Config, sink Sink, opts ...Option) *Notifier {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	return &Notifier{
		cfg:  cfg,
		sink: sink,
		opts: buildOptions(opts),
	}
}

// Arm starts the deadline timer. The notifier keeps ctx values but not its
// cancellation, so a request-scoped ctx may be passed in.
func (n *Notifier) Arm(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.tornDown:
		return ErrTornDown
	case n.armed:
		return ErrAlreadyArmed
	case n.hasInteracted:
		return ErrInteracted
	}

	n.ctx, n.cancel = context.WithCancel(context.WithoutCancel(ctx))
	n.armed = true
	n.timer = n.opts.scheduler.AfterFunc(n.cfg.Delay, n.fire)

	if n.opts.metrics != nil {
		n.opts.metrics.PromptsArmed.Inc()
	}
	return nil
}

func (n *Notifier) fire() {
	n.mu.Lock()
	if n.tornDown || n.hasInteracted || n.fired {
		n.mu.Unlock()
		return
	}
	n.fired = true
	n.isVisible = true
	n.inflight.Add(1)
	record := n.record()
	ctx, cancel := context.WithTimeout(n.ctx, n.opts.sendTimeout)
	n.mu.Unlock()

	defer n.inflight.Done()
	defer cancel()

	if n.opts.metrics != nil {
		n.opts.metrics.PromptsFired.Inc()
	}
	if n.sink == nil {
		return
	}
	if err := n.sink.Send(ctx, record); err != nil {
		n.opts.logger.Error(err, "failed to hand off prompt notification",
			"recipient_id", n.cfg.Recipient.String())
		if n.opts.metrics != nil {
			n.opts.metrics.PromptSinkErrors.Inc()
		}
	}
}

func (n *Notifier) record() *model.Notification {
	rec := &model.Notification{
		Type:     model.NotificationTypeChatbot,
		Title:    n.cfg.Title,
		Message:  n.cfg.Message,
		Priority: model.NotificationPriorityLow,
		Target:   model.TargetUser,
		Status:   model.NotificationStatusUnread,
	}
	if n.cfg.Recipient != uuid.Nil {
		recipient := n.cfg.Recipient
		rec.RecipientID = &recipient
	}
	return rec
}

// Cancel records a visitor interaction. A pending fire becomes a no-op even
// if the timer already started running.
func (n *Notifier) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.tornDown || n.hasInteracted {
		return
	}
	n.hasInteracted = true
	n.isVisible = false

	if n.armed && !n.fired {
		if n.timer != nil {
			n.timer.Stop()
		}
		if n.opts.metrics != nil {
			n.opts.metrics.PromptsSuppressed.Inc()
		}
	}
}

// Dismiss hides the panel without counting as an interaction.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.tornDown {
		return
	}
	n.isVisible = false
}

func (n *Notifier) Render() View {
	n.mu.Lock()
	defer n.mu.Unlock()

	v := View{Visible: n.isVisible, Phase: n.phase()}
	if v.Visible {
		v.Title = n.cfg.Title
		v.Message = n.cfg.Message
	}
	return v
}

func (n *Notifier) phase() Phase {
	switch {
	case n.tornDown:
		return PhaseTornDown
	case n.fired:
		return PhaseFired
	case n.hasInteracted:
		return PhaseSuppressed
	case n.armed:
		return PhaseArmed
	default:
		return PhaseIdle
	}
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	return State{
		HasInteracted: n.hasInteracted,
		IsVisible:     n.isVisible,
		Armed:         n.armed,
		Fired:         n.fired,
		TornDown:      n.tornDown,
	}
}

// Teardown releases the timer and blocks until an in-flight hand-off
// returns. Afterwards the notifier never touches its state or the sink.
func (n *Notifier) Teardown() {
	n.mu.Lock()
	if n.tornDown {
		n.mu.Unlock()
		return
	}
	n.tornDown = true
	n.isVisible = false
	if n.timer != nil {
		n.timer.Stop()
	}
	n.mu.Unlock()

	n.inflight.Wait()
	if n.cancel != nil {
		n.cancel()
	}
	if n.opts.metrics != nil {
		n.opts.metrics.PromptsTornDown.Inc()
	}
}
