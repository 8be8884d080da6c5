// Package retention prunes old audit records on a schedule.
//
// A Pruner enforces two limits: records older than RetentionDays are
// deleted, and when MaxRecords is set the oldest records beyond the cap
// go too. Records can be archived to JSON files before deletion.
//
// Pruning runs on a cron schedule:
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 90,
//	    Schedule:      "0 3 * * *",
//	}, logger)
//	if err := pruner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pruner.Stop()
package retention
