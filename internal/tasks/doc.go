// Package tasks keeps a job session in sync with the separation backend.
//
// # Sources
//
// Two sources report job progress and they may race:
//
//  1. The push channel ([channel.Client]) delivers progress text, completion and failure as they happen.
//  2. The [Poller] asks GET /api/status/{id} on a fixed interval and reports only terminal states.
//
// Whichever terminal event arrives first wins; the session reducer makes the second one a no-op.
//
// # Tracker
//
// [Tracker] is the composition root. Sources and error-clear timers never touch the session: they
// [Tracker.Dispatch] events into a buffered channel. A single consumer (the TUI update loop or
// [Tracker.Wait]) drains it and calls [Tracker.Apply], which reduces the event and derives the effects of the
// transition: starting and stopping the poller, arming the error-clear timer, recording history.
//
// [Tracker.Close] releases the channel, the poller and all pending timers before returning.
//
// # Drop folder
//
// [WatchDir] turns files appearing in a directory into upload candidates.
package tasks
