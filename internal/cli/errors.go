package cli

import "errors"

var ErrUsage = errors.New("cli usage error")

// ErrPartial is returned by convert when diagnostics were recorded and
// --allow-partial was not set. The partial output has still been written.
var ErrPartial = errors.New("partial conversion")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
