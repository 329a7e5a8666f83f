// Package daemon provides the main orchestration for lanechimed.
// It wires the sound bank, mixer, event queue, command protocol and audio
// transport together, drains protocol events into the mixer, and applies
// configuration hot-reloads.
package daemon
