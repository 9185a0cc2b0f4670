package errcode

import "errors"

// Code is a stable error identifier for board construction and bus mapping.
// It is a string newtype, comparable, allocation-free, and implements error.
//
// Guest-visible register faults never surface as Codes: per the device
// contract they are logged diagnostics and the access degrades gracefully.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	BadPinCount   Code = "bad_pin_count"
	PinOutOfRange Code = "pin_out_of_range"
	BadRAMSize    Code = "bad_ram_size"
	BadBackend    Code = "bad_backend"

	RegionOverlap Code = "region_overlap"
	RegionEmpty   Code = "region_empty"
	Unmapped      Code = "unmapped"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from anywhere in err's chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	return Error
}
