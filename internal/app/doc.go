// Package app coordinates the three harness modes. Switching mode shows one
// panel, disables that mode's button, and fires before-switching-mode and
// after-switching-mode with a ModeEvent so controllers can start and stop.
package app
