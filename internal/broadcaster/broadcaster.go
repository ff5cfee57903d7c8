package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/rndlabs/daily-stoic-waku/internal/catalog"
	"github.com/rndlabs/daily-stoic-waku/internal/eventbus"
	"github.com/rndlabs/daily-stoic-waku/internal/observability"
	"github.com/rndlabs/daily-stoic-waku/internal/protocol"
	"github.com/rndlabs/daily-stoic-waku/internal/runtime/supervisor"
	"github.com/rndlabs/daily-stoic-waku/internal/schedule"
	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	"github.com/rndlabs/daily-stoic-waku/internal/transport"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// ErrNotReady is returned by Start when the transport never reports
// enough peers within the readiness budget.
var ErrNotReady = errors.New("transport not ready")

// ErrStopped is returned by Start when Stop ran before it finished.
var ErrStopped = errors.New("broadcaster stopped during start")

// Trigger names what caused a broadcast.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerRequest  Trigger = "request"
	TriggerStartup  Trigger = "startup"
)

// Picker yields one quote per call. *catalog.Catalog implements it.
type Picker interface {
	Pick() catalog.Quote
}

// Journal records publish attempts. storage.Store implements it.
type Journal interface {
	AppendBroadcast(ctx context.Context, rec storage.BroadcastRecord) error
}

type Config struct {
	// Schedule is parsed by schedule.Parse ("24h", "24:00", "0 7 * * *").
	Schedule string
	// Timezone applies to cron schedules. Empty means local time.
	Timezone string

	BroadcastOnStart bool

	MinPeers        int
	ReadyAttempts   int
	ReadyBackoff    time.Duration
	ReadyMaxBackoff time.Duration

	PublishTimeout time.Duration

	// DecodeLogRate caps decode-failure warnings per second. 0 disables the cap.
	DecodeLogRate float64
}

func DefaultConfig() Config {
	return Config{
		Schedule:         "24h",
		BroadcastOnStart: true,
		MinPeers:         1,
		ReadyAttempts:    10,
		ReadyBackoff:     time.Second,
		ReadyMaxBackoff:  30 * time.Second,
		PublishTimeout:   10 * time.Second,
		DecodeLogRate:    1,
	}
}

// Result is the payload of eventbus.TypeBroadcastPublished and
// eventbus.TypeBroadcastFailed.
type Result struct {
	ID      string
	Trigger Trigger
	Message protocol.DailyStoic
	Err     error
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option { return func(s *Service) { s.log = log } }

// WithClock replaces the real clock; interval schedules and readiness
// backoff run on it.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }

func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithStateHook registers fn to run on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(s *Service) { s.hooks = append(s.hooks, fn) }
}

type Service struct {
	cfg     Config
	tr      transport.Transport
	quotes  Picker
	log     logx.Logger
	clock   clockwork.Clock
	bus     eventbus.Bus
	journal Journal
	metrics *observability.Metrics
	hooks   []func(State)

	requestTopic   string
	broadcastTopic string

	mu    sync.Mutex
	state State
	sup   *supervisor.Supervisor
	unsub func()
	cron  *cron.Cron

	cancelStart context.CancelFunc

	queue      *queue
	decodeLogs *rate.Limiter
}

func New(cfg Config, tr transport.Transport, quotes Picker, opts ...Option) *Service {
	s := &Service{
		cfg:            cfg,
		tr:             tr,
		quotes:         quotes,
		log:            logx.Nop(),
		clock:          clockwork.NewRealClock(),
		requestTopic:   protocol.RequestTopic.String(),
		broadcastTopic: protocol.BroadcastTopic.String(),
		queue:          newQueue(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.ReadyAttempts <= 0 {
		s.cfg.ReadyAttempts = 1
	}
	limit := rate.Inf
	if s.cfg.DecodeLogRate > 0 {
		limit = rate.Limit(s.cfg.DecodeLogRate)
	}
	s.decodeLogs = rate.NewLimiter(limit, 1)
	return s
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activities reports the supervised activities, or nil before Running.
func (s *Service) Activities() []supervisor.GoroutineStats {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Snapshot()
}

// transition moves from -> to only if the service is still in from.
func (s *Service) transition(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()
	s.announce(from, to)
	return true
}

func (s *Service) announce(from, to State) {
	if from == to {
		return
	}
	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()

	s.metrics.SetState(int(to))
	s.log.Info("state changed", logx.String("from", from.String()), logx.String("to", to.String()))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeStateChanged, Time: s.clock.Now(), Data: StateChange{From: from, To: to}})
	}
	for _, fn := range hooks {
		if fn != nil {
			fn(to)
		}
	}
}

// Start gates on readiness, subscribes to both topics and starts the
// timer and drain activities. On failure nothing is started and the
// service is Failed. A concurrent Stop aborts Start with ErrStopped.
func (s *Service) Start(ctx context.Context) error {
	sched, loc, parseErr := s.parseSchedule()

	s.mu.Lock()
	if s.state != StateInitializing {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("broadcaster: start in state %s", st)
	}
	if parseErr != nil {
		s.state = StateFailed
		s.mu.Unlock()
		s.announce(StateInitializing, StateFailed)
		return parseErr
	}
	s.state = StateConnecting
	startCtx, cancelStart := context.WithCancel(ctx)
	s.cancelStart = cancelStart
	s.mu.Unlock()
	defer cancelStart()
	s.announce(StateInitializing, StateConnecting)

	if err := s.waitReady(startCtx); err != nil {
		if !s.transition(StateConnecting, StateFailed) {
			return fmt.Errorf("%w: %w", ErrStopped, err)
		}
		return err
	}
	if !s.transition(StateConnecting, StateReady) {
		return ErrStopped
	}

	sup := supervisor.New(context.WithoutCancel(ctx), supervisor.WithLogger(s.log))
	unsub, err := s.tr.Subscribe(sup.Context(), []string{s.broadcastTopic, s.requestTopic}, s.onMessage)
	if err != nil {
		sup.Cancel()
		s.transition(StateReady, StateFailed)
		return fmt.Errorf("subscribe: %w", err)
	}
	abort := func(c *cron.Cron) {
		unsub()
		if c != nil {
			c.Stop()
		}
		_ = sup.Stop(ctx)
	}

	var c *cron.Cron
	restart := supervisor.WithRestartBackoff(100*time.Millisecond, 5*time.Second)
	sup.GoRestart("broadcaster.drain", s.drain, restart)
	if sched.Kind == schedule.KindCron {
		if c, err = s.newCron(sup.Context(), sched, loc); err != nil {
			abort(nil)
			s.transition(StateReady, StateFailed)
			return err
		}
		c.Start()
	} else {
		sup.GoRestart("broadcaster.timer", func(ctx context.Context) error {
			return s.runInterval(ctx, sched.Every)
		}, restart)
	}

	// Publish the handles and enter Running in one step so a Stop racing
	// with Start either sees them or leaves the teardown to us.
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		abort(c)
		return ErrStopped
	}
	s.sup, s.unsub, s.cron = sup, unsub, c
	s.state = StateRunning
	s.mu.Unlock()
	s.announce(StateReady, StateRunning)

	s.log.Info("broadcaster running",
		logx.String("schedule", sched.String()),
		logx.String("broadcast_topic", s.broadcastTopic),
		logx.String("request_topic", s.requestTopic),
	)

	if s.cfg.BroadcastOnStart {
		sup.Go0("broadcaster.startup", func(ctx context.Context) {
			_, _ = s.BroadcastOnce(ctx, TriggerStartup)
		})
	}
	return nil
}

// Stop unsubscribes, stops the schedule and waits for activities to exit
// or ctx to expire. ShuttingDown is final: a Start in progress aborts.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	from := s.state
	if from == StateShuttingDown || from == StateFailed || from == StateInitializing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	cancelStart := s.cancelStart
	s.mu.Unlock()

	if cancelStart != nil {
		cancelStart()
	}
	s.announce(from, StateShuttingDown)
	return s.shutdown(ctx)
}

func (s *Service) shutdown(ctx context.Context) error {
	s.mu.Lock()
	unsub, c, sup := s.unsub, s.cron, s.sup
	s.unsub, s.cron = nil, nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.queue.close()
	if c != nil {
		// Wait for a running job, bounded by ctx.
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func (s *Service) parseSchedule() (schedule.Parsed, *time.Location, error) {
	sched, err := schedule.Parse(s.cfg.Schedule)
	if err != nil {
		return schedule.Parsed{}, nil, fmt.Errorf("schedule: %w", err)
	}
	loc := time.Local
	if s.cfg.Timezone != "" {
		loc, err = time.LoadLocation(s.cfg.Timezone)
		if err != nil {
			return schedule.Parsed{}, nil, fmt.Errorf("timezone: %w", err)
		}
	}
	return sched, loc, nil
}
