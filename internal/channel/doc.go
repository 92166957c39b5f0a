// Package channel implements the push side of job status tracking: a persistent, auto-reconnecting WebSocket
// connection that turns server-pushed messages into [session.Event] values.
//
// # Protocols
//
// Two framings are supported, selected by [Options.Protocol]:
//   - [SocketIO] : Engine.IO v4 over WebSocket, as spoken by Flask-SocketIO and friends. The client answers the open
//     packet with a namespace connect ("40"), replies to pings ("2") with pongs ("3") and reads events from
//     message frames of the form 42["processing_status",{...}].
//   - [JSON] : every text frame is an envelope {"event": "processing_status", "data": {...}}.
//
// # Events
//
//	processing_status   {message, job_id?} → session.Progress
//	processing_complete {job_id}           → session.Complete
//	processing_error    {error, job_id?}   → session.Failure
//
// Anything else is logged and skipped.
//
// # Reconnection
//
// [Client.Run] dials, serves the connection until it drops, then waits [Options.ReconnectDelay] and dials again. The
// failure counter resets after every successful connection; once [Options.ReconnectAttempts] consecutive retries
// fail, Run returns [shared.ErrChannelExhausted] and the caller carries on with polling only.
package channel
