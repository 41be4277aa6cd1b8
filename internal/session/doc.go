// Package session implements the per-connection search coordinator.
//
// A Coordinator owns all state of one client session and runs it on a single
// goroutine. Client commands and worker replies arrive as messages in its
// mailbox and are handled one at a time. Workers:
//
//   - poller: one per active query, fetches on a Scheduler and dedups locally
//   - sentiment: long-lived scorer, replies keyed by request id
//   - profile, stats: one-shot goroutines per client request
//
// Poller and sentiment crashes are restarted under a RestartPolicy. Workers
// post into the mailbox with a select on the session context, so replies that
// arrive after teardown are dropped.
package session
