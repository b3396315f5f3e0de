package cpu

import "errors"

// ErrDecodeFailed marks an instruction word this emulator does not
// recognize as one of the forms it implements.
var ErrDecodeFailed = errors.New("cpu: decode failed")
