// Package store provides durable delivery.QuotaStore and delivery.JobStore
// backends.
//
// SQLiteQuotaStore and SQLiteJobStore use modernc.org/sqlite (pure Go) in
// WAL mode and are safe for several processes sharing one file.
// RedisQuotaStore keeps counters in Redis for multi-instance deployments;
// its Reserve is a Lua script so the increment and the limit check happen
// in one atomic step.
package store
