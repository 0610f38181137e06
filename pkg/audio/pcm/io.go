package pcm

import "io"

// Writer receives rendered audio chunks.
type Writer interface {
	Write(Chunk) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc adapts a function to Writer.
type WriteFunc func(Chunk) error

func (f WriteFunc) Write(c Chunk) error {
	return f(c)
}

// Discard is a Writer that drops every chunk.
var Discard Writer = WriteFunc(func(Chunk) error { return nil })

// ChunkWriter writes each chunk's bytes to w, e.g. to a raw PCM file.
func ChunkWriter(w io.Writer) Writer {
	return WriteFunc(func(c Chunk) error {
		_, err := c.WriteTo(w)
		return err
	})
}
