// Package tui renders the harness widget tree in the terminal.
//
// The Model owns the async event loop: loop tasks only run inside Update,
// triggered by a command that blocks on the loop's wake channel. Focus moves
// over visible, enabled buttons and input fields. Enter presses a button,
// cycles a select field, or opens a text input whose value is committed back
// to the field as a change event.
package tui
