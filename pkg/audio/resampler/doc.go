// Package resampler converts mono float audio between sample rates.
//
// Capture devices rarely run at the 16 kHz the live session expects, and
// synthesized speech may not match the output device rate. A Converter keeps
// resampler state across calls so consecutive frames of one stream stay
// continuous.
//
// Example usage:
//
//	c, err := resampler.New(48000, 16000)
//	if err != nil {
//		return err
//	}
//	out, err := c.Process(frame)
package resampler
