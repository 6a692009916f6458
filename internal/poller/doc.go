// Package poller drives the fetch → parse → group → aggregate → classify
// pipeline on a configurable cadence.
//
// The Poller is an explicit state machine (idle → running → paused/running →
// stopped) rather than a bare sleep loop: every suspension point — the
// per-request backoff inside the client, the 100ms inter-query pacing delay,
// and the end-of-cycle interval sleep — honours the cancellation context, so
// Stop takes effect without waiting out a sleep and a cancelled cycle never
// emits a partial Snapshot.
//
// One Snapshot is emitted per completed cycle, delivered to subscribers via
// buffered channels (slow consumers drop the oldest snapshot) and kept in a
// poll-able latest-value slot.
package poller
