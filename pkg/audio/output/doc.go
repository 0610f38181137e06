// Package output schedules decoded audio buffers on a playback timeline.
//
// A Context owns a monotonic clock measured from its creation. Buffers are
// started at an absolute time on that clock and each returns a Handle that
// completes when the buffer has been rendered or is stopped. Two contexts
// are provided:
//
//   - Device renders in real time and writes mixed PCM to a pcm.Writer.
//   - Manual only moves when Advance is called, which makes timing
//     deterministic in tests.
package output
