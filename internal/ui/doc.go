// Package ui implements interactive terminal views using bubbletea's Elm architecture.
//
//  1. [MatchModel] : run a matching pass with a live progress bar, then browse every track and its outcome
//  2. [WatchModel] : poll a download job until it completes or fails, with the option to cancel it
//
// Progress from the match engine flows through a channel, so the view never blocks matching.
// Keyboard navigation uses vim-style bindings (j/k, /, c, q) with contextual help via charmbracelet/bubbles/help.
package ui
