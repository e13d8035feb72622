package iox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type spyCloser struct {
	closed bool
	err    error
}

func (s *spyCloser) Close() error { s.closed = true; return s.err }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{err: errors.New("ignored")}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseInto(t *testing.T) {
	closeErr := errors.New("disk full")
	writeErr := errors.New("short write")

	tests := []struct {
		name     string
		prior    error
		closeErr error
		want     error
	}{
		{"both nil", nil, nil, nil},
		{"close error surfaces", nil, closeErr, closeErr},
		{"prior error wins", writeErr, closeErr, writeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prior
			s := &spyCloser{err: tt.closeErr}
			CloseInto(&err, s, "mesh file")
			if !s.closed {
				t.Fatal("Close was not called")
			}
			if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenInput(t *testing.T) {
	in, err := OpenInput(Stdin)
	if err != nil {
		t.Fatalf("OpenInput(stdin) failed: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("closing stdin reader: %v", err)
	}
	if _, err := os.Stdin.Stat(); err != nil {
		t.Errorf("stdin closed by OpenInput reader: %v", err)
	}

	path := filepath.Join(t.TempDir(), "frames.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := OpenInput(path)
	if err != nil {
		t.Fatalf("OpenInput(file) failed: %v", err)
	}
	DiscardClose(f)

	if _, err := OpenInput(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", err)
	}
}
