// Package pcm provides types and utilities for working with 16-bit PCM audio.
//
// The package defines formats for the mono rates used by the oracle (16 kHz
// capture, 24 kHz playback), chunk writers for moving raw audio to a sink, and
// the codec helpers used on the wire:
//
//   - EncodeBase64 / DecodeBase64: lossless text framing of binary audio
//   - DecodeAudioData: raw little-endian PCM16 into a playable Buffer
//   - EncodeFloat32: captured float samples into PCM16 frames
//
// Example usage:
//
//	buf, err := pcm.DecodeAudioData(raw, 24000, 1)
//	if err != nil {
//		return err
//	}
//	fmt.Println(buf.Duration())
//
//	frame := pcm.EncodeFloat32(samples)
//	mime := pcm.L16Mono16K.MIMEType() // audio/pcm;rate=16000
package pcm
