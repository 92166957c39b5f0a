// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The view router follows the job session's view:
//  1. Upload : path entry (a file dropped on the terminal pastes its path), local validation errors
//  2. Processing : spinner, filename and the latest status message
//  3. Results : save or play the vocals and accompaniment stems, copy the job id, start over
//
// A blocking notice reports download and playback failures until dismissed, and tab opens the job history.
//
// The (view) [Model] never changes the session itself: events from the [tasks.Tracker] stream arrive as messages and
// are passed to Tracker.Apply, whose snapshot the model renders. Keyboard help is displayed via
// charmbracelet/bubbles/help.
package ui
