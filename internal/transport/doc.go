// Package transport delivers the mixer's PCM stream to an audio sink.
//
// Every transport pulls frames through a FrameReader, reports connection and
// audio state changes to registered observers, and accepts a 0-100 volume.
// Three backends exist: oto (direct device output), beep (speaker with a volume
// effect) and headless (real-time pacing without a device, with optional WAV
// capture).
package transport
