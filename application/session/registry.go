package session

import (
	"context"
	stdsync "sync"
	"time"

	"funnel-backend/application/ports"
	"funnel-backend/application/services"
	appsync "funnel-backend/application/sync"
	domainconfig "funnel-backend/domain/config"
	"funnel-backend/domain/core/aggregates"
	"funnel-backend/domain/events"
	"funnel-backend/domain/core/valueobjects"
	pkgerrors "funnel-backend/pkg/errors"
	"funnel-backend/pkg/observability"

	"go.uber.org/zap"
)

// Notifier receives save progress and committed mutations for fan-out
// to connected clients. A nil notifier is valid; outcomes are then
// only logged.
type Notifier interface {
	NotifySaveStarted(canvasID, reason string)
	NotifySaveResult(canvasID, reason string, err error)
	NotifyMutations(canvasID string, committed []events.DomainEvent)
}

// Session binds one open canvas to its interaction machinery. A single
// mutex serializes every mutation of the canvas, mirroring the
// single-threaded event loop the gesture model assumes; handlers lock
// the session, the engine and reconciler lock it from their completion
// goroutines.
type Session struct {
	mu stdsync.Mutex

	Canvas     *aggregates.Canvas
	Controller *Controller
	Service    *services.CanvasService
	Engine     *appsync.Engine
	Reconciler *appsync.MemoReconciler

	debouncer  *appsync.Debouncer
	lastActive time.Time
}

// Lock acquires the session's mutation lock
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's mutation lock
func (s *Session) Unlock() { s.mu.Unlock() }

// Do runs fn under the session lock and marks the session active
func (s *Session) Do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return fn()
}

// LastActive reports when the session last handled a request
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) shutdown() {
	s.Engine.Close()
	s.debouncer.Stop()
}

// Registry tracks open canvas sessions by canvas id. Opening is
// idempotent: concurrent opens of the same canvas share one session.
type Registry struct {
	mu       stdsync.Mutex
	sessions map[aggregates.CanvasID]*Session

	snapshots ports.SnapshotStore
	memos     ports.MemoStore
	todos     ports.TodoCounter
	config    *domainconfig.DomainConfig
	limit     func() int
	notifier  Notifier
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRegistry creates a session registry. limit is read per quota
// check so config reloads apply to open sessions.
func NewRegistry(
	snapshots ports.SnapshotStore,
	memos ports.MemoStore,
	todos ports.TodoCounter,
	config *domainconfig.DomainConfig,
	limit func() int,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Registry {
	if limit == nil {
		limit = func() int { return config.FreeTierLimit }
	}
	return &Registry{
		sessions:  make(map[aggregates.CanvasID]*Session),
		snapshots: snapshots,
		memos:     memos,
		todos:     todos,
		config:    config,
		limit:     limit,
		metrics:   metrics,
		logger:    logger,
	}
}

// SetNotifier installs the save-outcome fan-out. Called once during
// wiring, before any session opens.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// Open loads the canvas and builds its session. The stored snapshot is
// read once; a missing snapshot opens an empty canvas. The viewport is
// fitted to the loaded content for the given container dimensions.
func (r *Registry) Open(ctx context.Context, canvasID aggregates.CanvasID, userID string, containerWidth, containerHeight float64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[canvasID]; ok {
		return sess, nil
	}

	snap, err := r.snapshots.Load(ctx, canvasID.String())
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			return nil, err
		}
		snap = nil
	}

	canvas, err := HydrateCanvas(canvasID, userID, "", snap)
	if err != nil {
		return nil, err
	}

	positions := make([]valueobjects.Position, 0, canvas.NodeCount())
	for _, node := range canvas.Nodes() {
		positions = append(positions, node.Position())
	}
	canvas.SetViewport(canvas.Viewport().FitToContent(
		positions,
		r.config.NodeBoxWidth, r.config.NodeBoxHeight,
		containerWidth, containerHeight,
	))

	logger := r.logger.With(zap.String("canvasID", canvasID.String()))
	debouncer := appsync.NewDebouncer(r.config.SaveDebounce)

	sess := &Session{
		Canvas:     canvas,
		debouncer:  debouncer,
		lastActive: time.Now(),
	}

	snapshotFn := func() *ports.Snapshot {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return BuildSnapshot(canvas)
	}

	callbacks := appsync.Callbacks{
		OnStart: func(reason string) {
			if r.notifier != nil {
				r.notifier.NotifySaveStarted(canvasID.String(), reason)
			}
		},
		OnSuccess: func(reason string) {
			// The write that just landed carries every mutation since
			// the previous one; its events are now committed
			sess.mu.Lock()
			committed := canvas.GetUncommittedEvents()
			canvas.MarkEventsAsCommitted()
			sess.mu.Unlock()

			if r.notifier != nil {
				if len(committed) > 0 {
					r.notifier.NotifyMutations(canvasID.String(), committed)
				}
				r.notifier.NotifySaveResult(canvasID.String(), reason, nil)
			}
		},
		OnError: func(reason string, err error) {
			if r.notifier != nil {
				r.notifier.NotifySaveResult(canvasID.String(), reason, err)
			}
		},
	}

	engine := appsync.NewEngine(canvasID.String(), r.snapshots, snapshotFn, debouncer, callbacks, r.metrics, logger)
	reconciler := appsync.NewMemoReconciler(canvasID.String(), canvas, r.memos, sess, debouncer, callbacks, logger)
	quota := services.NewQuotaGuard(r.todos, r.limit, logger)
	service := services.NewCanvasService(canvas, engine, reconciler, quota, r.config, sess, logger)

	sess.Engine = engine
	sess.Reconciler = reconciler
	sess.Service = service
	sess.Controller = NewController(canvas, service, logger)

	r.sessions[canvasID] = sess
	if r.metrics != nil {
		r.metrics.SessionsOpen.Inc()
	}
	logger.Info("Canvas session opened",
		zap.Int("nodes", canvas.NodeCount()),
		zap.Int("edges", canvas.EdgeCount()),
		zap.Int("memos", canvas.MemoCount()),
	)
	return sess, nil
}

// Get returns the open session for a canvas
func (r *Registry) Get(canvasID aggregates.CanvasID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[canvasID]
	return sess, ok
}

// Close flushes any pending save and tears the session down
func (r *Registry) Close(canvasID aggregates.CanvasID) {
	r.mu.Lock()
	sess, ok := r.sessions[canvasID]
	delete(r.sessions, canvasID)
	r.mu.Unlock()
	if !ok {
		return
	}

	sess.Service.Save()
	sess.shutdown()
	if r.metrics != nil {
		r.metrics.SessionsOpen.Dec()
	}
	r.logger.Info("Canvas session closed", zap.String("canvasID", canvasID.String()))
}

// CloseAll tears down every open session, for process shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]aggregates.CanvasID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}
