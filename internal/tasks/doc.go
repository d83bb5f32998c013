// Package tasks runs background credential maintenance.
//
// # Sweep
//
// [Sweeper.RunOnce] performs one pass:
//
//  1. Deletes expired OAuth link states
//  2. Lists stored credentials and selects those expiring within the horizon
//  3. Refreshes the selected credentials on a bounded worker pool, throttled by a rate limiter
//
// A refresh that fails is counted but does not stop the sweep. Repeated failures eventually
// unlink the user through the token manager's own failure budget.
//
// [Sweeper.Start] repeats the pass on a fixed interval until its context is cancelled.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct carries phase, step counters and a message.
// Updates are sent with select and default so a slow reader never blocks a sweep.
package tasks
