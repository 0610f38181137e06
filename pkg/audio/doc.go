// Package audio groups the audio packages of the oracle:
//
//   - pcm: 16-bit PCM formats, the wire codec and playable buffers
//   - resampler: sample-rate conversion of captured audio
//   - output: scheduled playback against an output clock
package audio
