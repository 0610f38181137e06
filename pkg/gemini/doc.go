// Package gemini is the oracle's model client. It wraps google.golang.org/genai
// for the three things the oracle asks of the model: streamed text replies,
// speech synthesis and live voice sessions.
//
// A Client built without an API key is explicitly unavailable: every call
// fails with ErrUnavailable instead of reaching the network, so callers can
// render a configuration message.
package gemini
