// Package ui implements the `sync --tui` progress view using bubbletea's Elm architecture.
//
// The [Model] has two views:
//  1. [RunningView] : spinner, progress bar and the most recent outcomes while the pipeline runs
//  2. [ResultView] : run summary and a filterable list of every outcome
//
// Progress updates flow through a channel from the pipeline. Quitting during a run cancels its context; the
// pipeline then records the remaining entries and the final result is still returned by [Model.Result].
//
// The package also exports the lipgloss palette used for coloured CLI summaries.
package ui
