package delivery

import (
	"container/heap"
	"context"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/tracing"
)

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		job, ok := q.next()
		if !ok {
			return
		}
		q.dispatch(job)
	}
}

// next blocks until a job is ready and dispatch is not paused. It returns
// false once the queue is stopping.
func (q *Queue) next() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopping {
			return nil, false
		}
		if !q.paused && q.ready.Len() > 0 {
			return heap.Pop(&q.ready).(*Job), true
		}
		q.cond.Wait()
	}
}

// dispatch runs one attempt: rate limiter, recipient check, quota day,
// circuit breaker, then the gateway call.
func (q *Queue) dispatch(job *Job) {
	if err := q.limiter.Wait(q.runCtx); err != nil {
		q.park(job)
		return
	}

	if _, err := q.gateway.ValidateRecipientFormat(job.Message.Recipient); err != nil {
		q.release(job.QuotaKey, 1)
		q.fail(job, asKind(err, KindInvalidRecipient))
		return
	}

	if err := q.ensureQuota(job); err != nil {
		if q.runCtx.Err() != nil {
			q.park(job)
			return
		}
		if KindOf(err) == KindQuotaExceeded {
			metrics.QuotaRejections.Inc()
			q.fail(job, err)
			return
		}
		q.update(job, func(j *Job) { j.Attempts++ })
		q.retryOrFail(job, NewError(KindNetworkError, "quota store unavailable", err))
		return
	}

	if err := q.breaker.Allow(); err != nil {
		metrics.DeliveryAttempts.WithLabelValues(string(KindCircuitOpen)).Inc()
		q.release(job.QuotaKey, 1)
		q.fail(job, err)
		return
	}

	snap := q.update(job, func(j *Job) {
		j.State = JobDispatching
		j.Attempts++
	})
	q.save(snap)

	msgID, err := q.send(snap)
	if err == nil {
		q.breaker.RecordSuccess()
		metrics.DeliveryAttempts.WithLabelValues("none").Inc()
		q.finish(job, Result{Success: true, MessageID: msgID})
		return
	}

	kind := KindOf(err)
	metrics.DeliveryAttempts.WithLabelValues(string(kind)).Inc()
	if kind.Retryable() {
		q.breaker.RecordFailure()
	} else {
		// The gateway answered; it is healthy even if it refused this message.
		q.breaker.RecordSuccess()
	}
	q.retryOrFail(job, err)
}

func (q *Queue) send(job *Job) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.SendTimeout)
	defer cancel()

	ctx, span := q.tracer.Start(ctx, "delivery.dispatch",
		trace.WithAttributes(tracing.DeliveryAttributes(job.ID, job.Message.Metadata.DeliveryID, job.Attempts)...),
	)
	defer span.End()

	start := time.Now()
	msg := job.Message
	id, err := q.gateway.SendTemplate(ctx, &msg)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	tracing.SetStatus(span, err)
	return id, err
}

// ensureQuota moves the job's reservation to today when it was admitted on
// an earlier day. The earlier day's slot is released once today's is held.
func (q *Queue) ensureQuota(job *Job) error {
	key := q.quotaKey(q.now())
	if job.QuotaKey == key {
		return nil
	}
	if _, err := q.quota.Reserve(q.runCtx, key, 1, q.cfg.DailyLimit); err != nil {
		return err
	}
	old := job.QuotaKey
	q.update(job, func(j *Job) { j.QuotaKey = key })
	if old != "" {
		q.release(old, 1)
	}
	return nil
}

func (q *Queue) retryOrFail(job *Job, err error) {
	kind := KindOf(err)
	if !kind.Retryable() || job.Attempts >= q.cfg.MaxAttempts {
		q.finish(job, Result{Error: err.Error(), Kind: kind})
		return
	}

	delay := q.retryDelay(job.Attempts, err)
	at := q.now().Add(delay)
	snap := q.update(job, func(j *Job) {
		j.State = JobRetrying
		j.LastError = err.Error()
		j.LastErrorKind = kind
		j.NextAttemptAt = at
	})
	q.save(snap)

	q.logger.Warn("delivery attempt failed, retrying",
		"job_id", job.ID,
		"attempt", snap.Attempts,
		"kind", kind,
		"delay", delay,
		"error", err,
	)
	q.schedule(job.ID, delay)
}

// retryDelay returns the backoff before attempt+1. Rate-limited failures
// wait at least RateLimitedMultiplier times longer, or the gateway's
// Retry-After when that is longer still.
func (q *Queue) retryDelay(attempt int, err error) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.InitialBackoff
	b.MaxInterval = q.cfg.MaxBackoff
	b.Multiplier = q.cfg.BackoffMultiplier
	b.RandomizationFactor = q.cfg.BackoffJitter
	b.Reset()

	var d time.Duration
	for i := 0; i < max(attempt, 1); i++ {
		d = b.NextBackOff()
	}

	if KindOf(err) == KindGatewayRateLimited {
		d = time.Duration(float64(d) * q.cfg.RateLimitedMultiplier)
		if ra := RetryAfterOf(err); ra > d {
			d = ra
		}
	}
	return d
}

func (q *Queue) fail(job *Job, err error) {
	q.finish(job, Result{Error: err.Error(), Kind: KindOf(err)})
}

// finish records a terminal result and notifies handlers.
func (q *Queue) finish(job *Job, r Result) {
	now := q.now()
	r.JobID = job.ID
	r.Timestamp = now

	q.mu.Lock()
	r.Attempts = job.Attempts
	if r.Success {
		job.State = JobDelivered
		q.completed++
	} else {
		job.State = JobFailed
		job.LastError = r.Error
		job.LastErrorKind = r.Kind
		q.failed++
	}
	res := r
	job.Result = &res
	job.UpdatedAt = now
	job.NextAttemptAt = time.Time{}
	delete(q.live, job.ID)
	snap := job.Clone()
	handlers := slices.Clone(q.handlers)
	q.mu.Unlock()

	q.save(snap)

	if r.Success {
		metrics.DeliveryJobs.WithLabelValues(string(JobDelivered)).Inc()
		q.logger.Info("message delivered",
			"job_id", snap.ID,
			"delivery_id", snap.Message.Metadata.DeliveryID,
			"message_id", r.MessageID,
			"attempts", r.Attempts,
		)
	} else {
		metrics.DeliveryJobs.WithLabelValues(string(JobFailed)).Inc()
		q.logger.Warn("delivery failed",
			"job_id", snap.ID,
			"delivery_id", snap.Message.Metadata.DeliveryID,
			"kind", r.Kind,
			"attempts", r.Attempts,
			"error", r.Error,
		)
	}

	for _, h := range handlers {
		h(snap.Clone(), r)
	}
}

// park returns a job taken off the heap during shutdown to the store as
// queued for the next generation.
func (q *Queue) park(job *Job) {
	snap := q.update(job, func(j *Job) { j.State = JobQueued })
	q.save(snap)
}

// update mutates a job under the queue lock and returns a snapshot.
func (q *Queue) update(job *Job, fn func(*Job)) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(job)
	job.UpdatedAt = q.now()
	return job.Clone()
}

func (q *Queue) save(job *Job) {
	if err := q.jobs.Save(context.Background(), job); err != nil {
		q.logger.Error("failed to persist job", "job_id", job.ID, "state", job.State, "error", err)
	}
}
