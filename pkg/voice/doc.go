// Package voice runs live, full-duplex voice conversations with the oracle.
//
// A Manager opens a Microphone, an output context and a Transport, then runs
// two loops until the session ends: the capture loop reads frames of
// FrameSize samples, resamples them to InputRate and sends them as PCM16; the
// receive loop reconciles transcript fragments through Transcripts and
// queues reply audio back to back on the output clock. Displayed status is
// speaking while any reply audio is queued and listening otherwise.
//
// Every resource of a session is released exactly once, whether the session
// is ended by the caller, closed by the server, canceled through its context
// or fails.
package voice
