// Package delivery dispatches compliant messages to the messaging gateway.
//
// A Queue admits messages against a durable daily quota and hands them to a
// bounded pool of workers, highest priority first. Every dispatch passes a
// shared token bucket and a shared circuit breaker before reaching the
// Gateway. Failures are classified into six kinds (see ErrorKind); network
// errors and gateway rate limiting are retried with exponential backoff on
// an injected Scheduler, everything else fails fast.
//
// Quota reservations are atomic increment-and-check operations on a
// QuotaStore, so the daily limit holds across goroutines and processes.
// BulkEnqueue reserves a whole batch in one call: either every message is
// admitted or none is.
//
// Basic usage:
//
//	q, err := delivery.New(cfg, delivery.Deps{
//		Gateway: delivery.NewHTTPGateway(gwCfg, nil, logger),
//		Quota:   quotaStore,
//		Jobs:    jobStore,
//		Logger:  logger,
//	})
//	if err != nil {
//		return err
//	}
//	if err := q.Start(ctx); err != nil {
//		return err
//	}
//	defer q.Shutdown(context.Background())
//
//	jobID, err := q.Enqueue(ctx, msg, delivery.EnqueueOptions{Priority: delivery.PriorityHigh})
package delivery
