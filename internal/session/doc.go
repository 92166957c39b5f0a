// Package session holds the single authoritative record of a client's separation job and the pure reducer that
// reconciles status events into it.
//
// # Views
//
// A [State] is always in exactly one [View]:
//  1. [Upload] : waiting for a file (errors are displayed here)
//  2. [Processing] : a job id is set and no terminal event has been applied
//  3. [Results] : the job completed and its stems can be played or downloaded
//
// # Events
//
// [Event] is a tagged variant. The push channel and the polling fallback produce [Progress], [Complete] and
// [Failure]; the client itself produces [Submitted], [Rejected] and [ClearError].
//
// # Merge Rule
//
// [Reduce] is the only place state changes. Terminal events ([Complete], [Failure]) apply only while the state is
// [Processing] and the event names the active job (or no job), so whichever source reports first wins and the other's
// report is discarded. Reduce never looks at [Event.Source].
package session
