// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"errors"
	"io"
	"os"
)

const streamBufferSize = 256

// Stream adapts an io.ReadWriteCloser whose Read returns after a bounded
// wait to the Port interface. Bytes are read in chunks and handed out one
// at a time.
type Stream struct {
	rw        io.ReadWriteCloser
	isTimeout func(error) bool

	buf  [streamBufferSize]byte
	r, w int
	err  error
}

// NewStream wraps rw. isTimeout reports read errors that only mean no data
// arrived in time; it may be nil when rw returns (0, nil) on timeout.
func NewStream(rw io.ReadWriteCloser, isTimeout func(error) bool) *Stream {
	return &Stream{rw: rw, isTimeout: isTimeout}
}

func (s *Stream) Poll() (byte, bool, error) {
	if s.r < s.w {
		b := s.buf[s.r]
		s.r++
		return b, true, nil
	}
	if s.err != nil {
		err := s.err
		s.err = nil
		return 0, false, err
	}

	n, err := s.rw.Read(s.buf[:])
	s.r, s.w = 0, n
	if err != nil && !s.timeout(err) {
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			err = ErrClosed
		}
		s.err = err
	}
	if n > 0 {
		s.r = 1
		return s.buf[0], true, nil
	}
	if s.err != nil {
		err := s.err
		s.err = nil
		return 0, false, err
	}
	return 0, false, nil
}

func (s *Stream) Send(frame []byte) error {
	_, err := s.rw.Write(frame)
	return err
}

func (s *Stream) Close() error {
	s.r, s.w = 0, 0
	return s.rw.Close()
}

func (s *Stream) timeout(err error) bool {
	if s.isTimeout != nil && s.isTimeout(err) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
