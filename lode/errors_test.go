package lode

import (
	"context"
	"errors"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("open /data: permission denied"), ErrPermissionDenied},
		{errors.New("AccessDenied: Access Denied"), ErrAccessDenied},
		{errors.New("NoSuchKey: the key does not exist"), ErrNotFound},
		{errors.New("write: no space left on device"), ErrDiskFull},
		{context.DeadlineExceeded, ErrTimeout},
		{timeoutErr{}, ErrTimeout},
		{errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{errors.New("ExpiredToken: token expired"), ErrAuth},
		{errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrNetwork},
		{errors.New("checksum mismatch"), ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := WrapWriteError(tt.err, "p")
			if !errors.Is(err, tt.want) {
				t.Errorf("classified %v as %v, want %v", tt.err, err, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("underlying error lost from chain")
			}
		})
	}
}

func TestWrap_NilAndIdempotent(t *testing.T) {
	if WrapReadError(nil, "p") != nil {
		t.Error("nil error wrapped")
	}
	first := WrapReadError(errors.New("not found"), "p")
	second := WrapWriteError(first, "q")
	var se *StorageError
	if !errors.As(second, &se) || se.Op != "read" || se.Path != "p" {
		t.Errorf("rewrapped: %v", second)
	}
}

func TestStorageError_Message(t *testing.T) {
	err := WrapInitError(errors.New("boom"), "")
	if got := err.Error(); got != "init: storage error: boom" {
		t.Errorf("Error() = %q", got)
	}
}
