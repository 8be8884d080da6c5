// Package audit records the outcome of every evaluation as an immutable
// audit trail for compliance review.
//
// # Architecture
//
// The audit system consists of three layers:
//
//  1. Recorder - builds records from evaluation reports and enqueues them
//  2. Store - persists records (in-memory or SQLite)
//  3. Export - renders stored records as CSV or JSON
//
// # Recording Flow
//
// Records are written asynchronously so evaluation calls never wait on
// storage:
//
//	Evaluate -> Report -> Recorder (bounded channel) -> worker -> Store
//
// When the channel is full the record is dropped and counted rather than
// blocking the evaluation path.
//
// # Basic Usage
//
//	store, err := audit.NewSQLiteStore(audit.DefaultSQLiteConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	recorder := audit.NewRecorder(store, nil, logger, nil)
//	defer recorder.Close()
//
//	report, err := eng.Evaluate(ctx, set, datasets)
//	recorder.Record(audit.NewRecord(requestID, set.Type, set.Area, report, err, time.Since(start)))
//
// # Retention
//
// Old records can be pruned on a cron schedule; see the retention
// subpackage.
package audit
