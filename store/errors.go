package store

import (
	"errors"
	"fmt"
)

// Mode classifies why a fetch failed.
type Mode uint8

const (
	ModeNotFound Mode = iota + 1
	ModeTooBig
	ModeDataMismatch
	ModeDecryptFailed
	ModeDecompressFailed
	ModeNotMetadata
	ModeInvalidMetadata
	ModeTooManyLevels
	ModeUnsupported
	ModeInvalidManifest
	ModeTransferFailed
)

func (m Mode) String() string {
	switch m {
	case ModeNotFound:
		return "not found"
	case ModeTooBig:
		return "too big"
	case ModeDataMismatch:
		return "data mismatch"
	case ModeDecryptFailed:
		return "decrypt failed"
	case ModeDecompressFailed:
		return "decompress failed"
	case ModeNotMetadata:
		return "not metadata"
	case ModeInvalidMetadata:
		return "invalid metadata"
	case ModeTooManyLevels:
		return "too many levels"
	case ModeUnsupported:
		return "unsupported"
	case ModeInvalidManifest:
		return "invalid manifest"
	case ModeTransferFailed:
		return "transfer failed"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// FetchError is returned by every Store operation that fails.
type FetchError struct {
	Mode Mode
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Mode.String()
	}
	return e.Mode.String() + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ModeOf returns the mode of the FetchError in err's chain.
func ModeOf(err error) (Mode, bool) {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return 0, false
	}
	return fe.Mode, true
}

func fail(mode Mode, err error) error {
	return &FetchError{Mode: mode, Err: err}
}

func failf(mode Mode, format string, args ...any) error {
	return &FetchError{Mode: mode, Err: fmt.Errorf(format, args...)}
}
