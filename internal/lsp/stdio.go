package lsp

import (
	"errors"
	"io"
)

// Stdio joins the process's stdin and stdout into the stream Serve reads
// and writes.
func Stdio(in io.ReadCloser, out io.WriteCloser) io.ReadWriteCloser {
	return &stdio{ReadCloser: in, WriteCloser: out}
}

type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s *stdio) Read(p []byte) (int, error)  { return s.ReadCloser.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.WriteCloser.Write(p) }

func (s *stdio) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.WriteCloser.Close())
}
