// Package sound holds the canned notification sounds played by lanechimed.
// Sources are mono signed 8-bit sample arrays that are upmixed to stereo
// 16-bit frames on read.
package sound
