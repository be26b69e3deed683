// Package audio assembles synthesized speech segments into WAV files.
//
// Every speech provider is asked for 24 kHz, 16-bit, mono little-endian PCM so
// segments can be concatenated byte-for-byte. Durations are derived from the
// sample count rather than from provider metadata.
package audio
