package errcode

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestOfUnwraps(t *testing.T) {
	base := &E{C: RegionOverlap, Op: "mem.Map", Msg: "uart0"}
	wrapped := pkgerrors.Wrap(base, "map gpio0")

	if Of(wrapped) != RegionOverlap {
		t.Fatalf("Of(wrapped) = %s", Of(wrapped))
	}
	if Of(Unmapped) != Unmapped {
		t.Fatalf("Of(bare code) = %s", Of(Unmapped))
	}
	if Of(nil) != OK {
		t.Fatal("Of(nil) != OK")
	}
	if Of(pkgerrors.New("boom")) != Error {
		t.Fatal("unknown error should map to generic code")
	}
}

func TestEError(t *testing.T) {
	e := &E{C: BadPinCount, Op: "grgpio.New"}
	if e.Error() != "bad_pin_count" {
		t.Fatalf("Error() = %q", e.Error())
	}
	e.Msg = "33 pins"
	if e.Error() != "bad_pin_count: 33 pins" {
		t.Fatalf("Error() = %q", e.Error())
	}
}
