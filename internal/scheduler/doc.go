// Package scheduler runs the periodic background jobs of the task service:
// the hourly due/overdue reminder scan and the daily recurrence spawner.
//
// Jobs are triggered by a cron scheduler that never overlaps two runs of
// the same job, both inside one process (SkipIfStillRunning) and across
// processes when a Redis-backed Locker is configured. Each task touched by
// a job is processed in its own transaction so one bad record cannot halt
// a run.
package scheduler
