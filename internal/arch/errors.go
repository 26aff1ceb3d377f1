package arch

import "errors"

// ErrUnsupportedArchitecture is returned when an instruction set has no known
// pointer width or no registered analysis backend.
var ErrUnsupportedArchitecture = errors.New("unsupported architecture")
