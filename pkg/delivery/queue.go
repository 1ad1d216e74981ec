package delivery

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/tracing"
)

// quotaKeyRetention is how long old day counters are kept by the rollover job.
const quotaKeyRetention = 48 * time.Hour

// ResultHandler receives every terminal job.
type ResultHandler func(job *Job, result Result)

// Deps are the queue's collaborators. Only Gateway is required.
type Deps struct {
	Gateway   Gateway
	Quota     QuotaStore
	Jobs      JobStore
	Scheduler Scheduler
	Clock     func() time.Time
	Logger    *slog.Logger
	Tracer    *tracing.Tracer
}

// Queue admits messages against the daily quota and dispatches them to the
// gateway from a bounded worker pool, highest priority first.
//
// Quota is reserved at admission, so a job that exists has already been
// counted. Reservations are given back only when a job fails before reaching
// the gateway. Jobs are persisted on every state change; jobs that are not
// terminal when the queue shuts down are picked up by the next Start.
type Queue struct {
	cfg     Config
	gateway Gateway
	quota   QuotaStore
	jobs    JobStore
	sched   Scheduler
	now     func() time.Time
	logger  *slog.Logger
	tracer  *tracing.Tracer

	breaker *CircuitBreaker
	limiter *TokenBucket

	// admitMu serializes admission so idempotency lookups and quota
	// reservations for one key cannot interleave.
	admitMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	ready     jobHeap
	live      map[string]*Job
	seq       uint64
	paused    bool
	started   bool
	stopping  bool
	closed    bool
	completed int64
	failed    int64
	handlers  []ResultHandler
	cron      *cron.Cron

	runCtx       context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a stopped queue.
func New(cfg Config, deps Deps) (*Queue, error) {
	if deps.Gateway == nil {
		return nil, errors.New("delivery queue requires a gateway")
	}
	cfg = cfg.withDefaults()

	if deps.Quota == nil {
		deps.Quota = NewMemoryQuotaStore()
	}
	if deps.Jobs == nil {
		deps.Jobs = NewMemoryJobStore()
	}
	if deps.Scheduler == nil {
		deps.Scheduler = NewScheduler()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.Noop()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:     cfg,
		gateway: deps.Gateway,
		quota:   deps.Quota,
		jobs:    deps.Jobs,
		sched:   deps.Scheduler,
		now:     deps.Clock,
		logger:  deps.Logger.With("component", "delivery.queue"),
		tracer:  deps.Tracer,
		breaker: NewCircuitBreaker(cfg.Breaker, deps.Clock),
		// Pacing is wall-clock based regardless of the injected clock.
		limiter: NewTokenBucket(cfg.RatePerSecond, 1, nil),
		live:    make(map[string]*Job),
		runCtx:  runCtx,
		cancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)

	q.breaker.OnStateChange(func(from, to BreakerState) {
		if to == BreakerOpen {
			metrics.CircuitOpen.Set(1)
		} else {
			metrics.CircuitOpen.Set(0)
		}
		q.logger.Warn("gateway circuit breaker changed state", "from", from, "to", to)
	})

	return q, nil
}

// Breaker exposes the gateway circuit breaker.
func (q *Queue) Breaker() *CircuitBreaker {
	return q.breaker
}

// OnResult registers a handler for terminal jobs. Handlers run on worker
// goroutines and must not block.
func (q *Queue) OnResult(h ResultHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, h)
}

// Start recovers persisted jobs, starts the workers and schedules the
// daily rollover job.
func (q *Queue) Start(ctx context.Context) error {
	if q.cfg.RolloverSchedule != "" {
		if _, err := cron.ParseStandard(q.cfg.RolloverSchedule); err != nil {
			return fmt.Errorf("invalid quota rollover schedule %q: %w", q.cfg.RolloverSchedule, err)
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.started {
		q.mu.Unlock()
		return errors.New("delivery queue already started")
	}
	q.started = true
	q.mu.Unlock()

	recovered, err := q.recoverPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover pending jobs: %w", err)
	}

	if q.cfg.RolloverSchedule != "" {
		c := cron.New(cron.WithLocation(q.cfg.Location))
		if _, err := c.AddFunc(q.cfg.RolloverSchedule, func() {
			if err := q.Rollover(q.runCtx); err != nil {
				q.logger.Error("quota rollover failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule quota rollover: %w", err)
		}
		c.Start()
		q.mu.Lock()
		q.cron = c
		q.mu.Unlock()
	}

	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	q.logger.Info("delivery queue started",
		"workers", q.cfg.Concurrency,
		"rate_per_second", q.cfg.RatePerSecond,
		"daily_limit", q.cfg.DailyLimit,
		"recovered", recovered,
	)
	return nil
}

// recoverPending loads non-terminal jobs left by a previous generation.
func (q *Queue) recoverPending(ctx context.Context) (int, error) {
	pending, err := q.jobs.Pending(ctx)
	if err != nil {
		return 0, err
	}

	now := q.now()
	var later []*Job

	q.mu.Lock()
	n := 0
	for _, j := range pending {
		if _, ok := q.live[j.ID]; ok {
			continue
		}
		n++
		q.live[j.ID] = j
		if (j.State == JobDelayed || j.State == JobRetrying) && j.NextAttemptAt.After(now) {
			later = append(later, j)
			continue
		}
		j.State = JobQueued
		q.pushLocked(j)
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, j := range later {
		q.schedule(j.ID, j.NextAttemptAt.Sub(now))
	}
	return n, nil
}

// Enqueue admits one message and returns its job ID. It never waits on the
// gateway. A repeated idempotency key returns the original job ID without
// consuming quota. Without an explicit key the delivery ID is used.
func (q *Queue) Enqueue(ctx context.Context, msg *Message, opts EnqueueOptions) (string, error) {
	q.admitMu.Lock()
	defer q.admitMu.Unlock()

	if q.isClosed() {
		return "", ErrQueueClosed
	}

	key := opts.IdempotencyKey
	if key == "" && msg != nil && msg.Metadata.DeliveryID != "" {
		key = "delivery:" + msg.Metadata.DeliveryID
	}
	if key != "" {
		existing, err := q.jobs.FindByIdempotencyKey(ctx, key)
		if err == nil {
			q.logger.DebugContext(ctx, "duplicate enqueue", "idempotency_key", key, "job_id", existing.ID)
			return existing.ID, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return "", fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	now := q.now()
	job, err := q.newJob(msg, opts, key, now)
	if err != nil {
		return "", err
	}
	if q.breaker.IsOpen() {
		return "", q.breaker.openError()
	}

	qkey := q.quotaKey(now)
	if _, err := q.quota.Reserve(ctx, qkey, 1, q.cfg.DailyLimit); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
			q.logger.WarnContext(ctx, "enqueue rejected: daily quota exhausted", "quota_key", qkey)
		}
		return "", err
	}
	job.QuotaKey = qkey

	if err := q.admit(ctx, []*Job{job}, opts.Delay); err != nil {
		q.release(qkey, 1)
		return "", err
	}
	return job.ID, nil
}

// BulkEnqueue admits a batch atomically against the quota: either every new
// message is admitted or, when they do not all fit in the remaining daily
// quota, none is. Messages with an invalid recipient are reported in
// Rejected and do not count. With a batch idempotency key each message is
// keyed "<key>:<index>", so retrying a batch never admits a message twice.
func (q *Queue) BulkEnqueue(ctx context.Context, msgs []*Message, opts EnqueueOptions) (*BulkResult, error) {
	q.admitMu.Lock()
	defer q.admitMu.Unlock()

	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	res := &BulkResult{JobIDs: make([]string, len(msgs))}
	if opts.IdempotencyKey != "" {
		res.BatchID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.IdempotencyKey)).String()
	} else {
		res.BatchID = uuid.NewString()
	}

	now := q.now()
	seen := make(map[string]string)
	var fresh []*Job

	for i, msg := range msgs {
		key := bulkKey(opts.IdempotencyKey, i, msg)
		if key != "" {
			if id, ok := seen[key]; ok {
				res.JobIDs[i] = id
				res.Duplicates++
				continue
			}
			existing, err := q.jobs.FindByIdempotencyKey(ctx, key)
			if err == nil {
				res.JobIDs[i] = existing.ID
				res.Duplicates++
				seen[key] = existing.ID
				continue
			}
			if !errors.Is(err, ErrJobNotFound) {
				return nil, fmt.Errorf("failed to check idempotency key: %w", err)
			}
		}

		job, err := q.newJob(msg, opts, key, now)
		if err != nil {
			res.Rejected = append(res.Rejected, BulkRejection{Index: i, Kind: KindOf(err), Error: err.Error()})
			continue
		}
		job.BatchID = res.BatchID
		fresh = append(fresh, job)
		res.JobIDs[i] = job.ID
		if key != "" {
			seen[key] = job.ID
		}
	}

	if len(fresh) == 0 {
		return res, nil
	}
	if q.breaker.IsOpen() {
		return nil, q.breaker.openError()
	}

	qkey := q.quotaKey(now)
	n := int64(len(fresh))
	if _, err := q.quota.Reserve(ctx, qkey, n, q.cfg.DailyLimit); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			metrics.QuotaRejections.Inc()
			q.logger.WarnContext(ctx, "bulk enqueue rejected: daily quota exhausted",
				"quota_key", qkey,
				"batch_size", n,
			)
		}
		return nil, err
	}
	for _, j := range fresh {
		j.QuotaKey = qkey
	}

	if err := q.admit(ctx, fresh, opts.Delay); err != nil {
		q.release(qkey, n)
		return nil, err
	}

	q.logger.InfoContext(ctx, "bulk enqueue admitted",
		"batch_id", res.BatchID,
		"admitted", len(fresh),
		"duplicates", res.Duplicates,
		"rejected", len(res.Rejected),
	)
	return res, nil
}

func bulkKey(batchKey string, index int, msg *Message) string {
	if batchKey != "" {
		return fmt.Sprintf("%s:%d", batchKey, index)
	}
	if msg != nil && msg.Metadata.DeliveryID != "" {
		return "delivery:" + msg.Metadata.DeliveryID
	}
	return ""
}

// newJob validates and normalizes a message into a job.
func (q *Queue) newJob(msg *Message, opts EnqueueOptions, key string, now time.Time) (*Job, error) {
	if msg == nil {
		return nil, NewError(KindInvalidRecipient, "missing message", nil)
	}
	recipient, err := q.gateway.ValidateRecipientFormat(msg.Recipient)
	if err != nil {
		return nil, asKind(err, KindInvalidRecipient)
	}
	if msg.Template.Name == "" {
		return nil, NewError(KindGatewayRejected, "missing template name", nil)
	}

	m := *msg
	m.Recipient = recipient
	m.Template.Components = slices.Clone(msg.Template.Components)

	prio := opts.Priority
	if prio == 0 {
		prio = msg.Metadata.Priority
	}
	if prio == 0 {
		prio = PriorityNormal
	}
	m.Metadata.Priority = prio

	return &Job{
		ID:             uuid.NewString(),
		Message:        m,
		State:          JobQueued,
		Priority:       prio,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// admit persists jobs and hands them to the dispatcher or the scheduler.
func (q *Queue) admit(ctx context.Context, jobs []*Job, delay time.Duration) error {
	if delay > 0 {
		at := q.now().Add(delay)
		for _, j := range jobs {
			j.State = JobDelayed
			j.NextAttemptAt = at
		}
	}

	for i, j := range jobs {
		if err := q.jobs.Save(ctx, j); err != nil {
			for _, saved := range jobs[:i] {
				_ = q.jobs.Delete(ctx, saved.ID)
			}
			return fmt.Errorf("failed to persist job: %w", err)
		}
	}

	q.mu.Lock()
	for _, j := range jobs {
		q.live[j.ID] = j
		if delay <= 0 {
			q.pushLocked(j)
		}
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	if delay > 0 {
		for _, j := range jobs {
			q.schedule(j.ID, delay)
		}
	}
	return nil
}

// Pause stops dispatching. Admission continues and in-flight jobs finish.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return
	}
	q.paused = true
	q.logger.Info("delivery queue paused")
}

// Resume restarts dispatching.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused {
		return
	}
	q.paused = false
	q.cond.Broadcast()
	q.logger.Info("delivery queue resumed")
}

// Paused reports whether dispatching is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Shutdown stops admission and dispatch, cancels pending timers and waits
// for in-flight gateway calls until ctx is done. Jobs that are not terminal
// stay in the job store. The stores are closed only after every worker has
// exited.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.shutdownOnce.Do(func() {
		q.shutdownErr = q.shutdown(ctx)
	})
	return q.shutdownErr
}

func (q *Queue) shutdown(ctx context.Context) error {
	q.admitMu.Lock()
	q.mu.Lock()
	q.closed = true
	q.stopping = true
	c := q.cron
	q.cond.Broadcast()
	q.mu.Unlock()
	q.admitMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	q.sched.Stop()
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("delivery queue shutdown timed out with jobs in flight")
		return fmt.Errorf("delivery queue shutdown: %w", ctx.Err())
	}

	q.mu.Lock()
	left := len(q.live)
	q.mu.Unlock()

	var errs []error
	if err := q.jobs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close job store: %w", err))
	}
	if err := q.quota.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close quota store: %w", err))
	}

	q.logger.Info("delivery queue stopped", "pending", left)
	return errors.Join(errs...)
}

// Stats returns a snapshot of the queue and today's quota.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		States:     make(map[JobState]int, len(JobStates)),
		QuotaLimit: q.cfg.DailyLimit,
		Workers:    q.cfg.Concurrency,
	}
	for _, s := range JobStates {
		st.States[s] = 0
	}

	q.mu.Lock()
	for _, j := range q.live {
		st.States[j.State]++
	}
	st.Completed = q.completed
	st.Failed = q.failed
	st.Paused = q.paused
	st.Running = q.started && !q.closed
	q.mu.Unlock()

	st.Waiting = st.States[JobQueued]
	st.Active = st.States[JobDispatching]
	st.Delayed = st.States[JobDelayed] + st.States[JobRetrying]
	st.Breaker = q.breaker.Snapshot()
	st.CircuitOpen = st.Breaker.IsOpen

	st.QuotaKey = q.quotaKey(q.now())
	used, err := q.quota.Used(ctx, st.QuotaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	st.QuotaUsed = used
	st.QuotaRemaining = max(q.cfg.DailyLimit-used, 0)

	for _, s := range JobStates {
		if !s.Terminal() {
			metrics.QueueDepth.WithLabelValues(string(s)).Set(float64(st.States[s]))
		}
	}
	metrics.QuotaUsed.Set(float64(used))

	return st, nil
}

// Job returns a job by ID, including terminal jobs still in the store.
func (q *Queue) Job(ctx context.Context, id string) (*Job, error) {
	return q.jobs.Get(ctx, id)
}

// Rollover removes terminal jobs past the idempotency window and old quota
// counters. It is idempotent; the day key itself changes at midnight in the
// gateway timezone.
func (q *Queue) Rollover(ctx context.Context) error {
	now := q.now()
	var errs []error

	purged, err := q.jobs.PurgeTerminal(ctx, now.Add(-q.cfg.IdempotencyTTL))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge terminal jobs: %w", err))
	}

	var pruned int64
	if p, ok := q.quota.(QuotaPruner); ok {
		pruned, err = p.PruneBefore(ctx, now.Add(-quotaKeyRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to prune quota counters: %w", err))
		}
	}

	if used, err := q.quota.Used(ctx, q.quotaKey(now)); err == nil {
		metrics.QuotaUsed.Set(float64(used))
	}

	q.logger.Info("quota rollover complete",
		"day", DayKey(now, q.cfg.Location),
		"purged_jobs", purged,
		"pruned_counters", pruned,
	)
	return errors.Join(errs...)
}

func (q *Queue) quotaKey(now time.Time) string {
	return QuotaKey(q.cfg.SenderID, DayKey(now, q.cfg.Location))
}

func (q *Queue) release(key string, n int64) {
	if err := q.quota.Release(context.Background(), key, n); err != nil {
		q.logger.Error("failed to release quota", "quota_key", key, "n", n, "error", err)
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) pushLocked(j *Job) {
	q.seq++
	j.seq = q.seq
	heap.Push(&q.ready, j)
}

// schedule makes a delayed or retrying job ready after d.
func (q *Queue) schedule(id string, d time.Duration) {
	q.sched.AfterFunc(d, func() { q.promote(id) })
}

func (q *Queue) promote(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.live[id]
	if !ok || q.stopping || (j.State != JobDelayed && j.State != JobRetrying) {
		return
	}
	j.State = JobQueued
	j.UpdatedAt = q.now()
	q.pushLocked(j)
	q.cond.Signal()
}

// asKind classifies an unclassified error as kind.
func asKind(err error, kind ErrorKind) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return NewError(kind, err.Error(), err)
}
