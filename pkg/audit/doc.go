// Package audit defines the append-only audit trail of compliance verdicts and
// delivery outcomes.
//
// Every Entry carries a content hash rather than raw content, a computed
// regulatory retention date and an exportable flag. Entries are immutable
// once written; the only removal path is PurgeExpired, which never touches an
// entry whose retention date lies in the future.
//
// # Layout
//
//   - storage: MemoryStorage and SQLiteStorage implementations of Storage
//   - trail: the Trail that assigns IDs, computes retention, flags high-risk
//     verdicts and serves queries and exports
//   - export: JSON and CSV compliance exports with SHA-256 checksums
//   - retention: scheduled purging of expired entries
//   - review: Flagger implementations for expedited review
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage(storage.SQLiteConfigFrom(cfg.Audit.SQLite))
//	if err != nil {
//		return err
//	}
//	t := trail.New(store, trail.ConfigFrom(cfg.Audit), logger, trail.WithFlagger(review.NewLogFlagger(logger)))
//	defer t.Close()
//
//	id, err := t.Record(ctx, &audit.Entry{Action: audit.ActionDeliveryFailed, ...})
package audit
