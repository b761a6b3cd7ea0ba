package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DefaultCodec matches what most players accept in an .mp4 container.
const DefaultCodec = "mp4v"

// Sink encodes frames to a file at a fixed rate.
type Sink struct {
	path    string
	size    image.Point
	writer  *gocv.VideoWriter
	written int
}

// CreateSink opens path for writing colour frames of the given size.
func CreateSink(path, codec string, fps float64, size image.Point) (*Sink, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	writer, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenSink, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: %s: codec %q at %dx%d", ErrOpenSink, path, codec, size.X, size.Y)
	}
	return &Sink{path: path, size: size, writer: writer}, nil
}

func (s *Sink) Write(f *Frame) error {
	if got := f.Size(); got != s.size {
		return fmt.Errorf("%w: %s: frame %d is %dx%d, stream is %dx%d",
			ErrWrite, s.path, f.Index, got.X, got.Y, s.size.X, s.size.Y)
	}
	if err := s.writer.Write(f.Mat); err != nil {
		return fmt.Errorf("%w: %s: frame %d: %v", ErrWrite, s.path, f.Index, err)
	}
	s.written++
	return nil
}

// Written reports how many frames were accepted.
func (s *Sink) Written() int {
	return s.written
}

// Close flushes and finalizes the container.
func (s *Sink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, s.path, err)
	}
	return nil
}
