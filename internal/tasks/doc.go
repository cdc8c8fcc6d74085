// Package tasks runs the daily shuffle: it walks every registered job, reads the source
// playlist, shuffles it and rewrites the destination playlist.
//
// # Runner
//
// [Runner.RunAll] performs one pass over all jobs. A failing job is counted, logged with its
// owner, source and destination, and the pass continues with the next job. Concurrent callers
// share a single in-flight pass, so a manual trigger during the scheduled run neither starts a
// second pass nor drops the caller. Passes that take longer than the configured budget log a
// warning but are never interrupted.
//
// [Runner.Start] drives passes on a fixed interval and sweeps expired PKCE verifiers.
//
// # Job Management
//
// [JobService] creates, retargets and deletes jobs on behalf of a user, enforcing ownership,
// and runs a job immediately after it is created or its source changes.
package tasks
