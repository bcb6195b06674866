package record

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

// -----------------------------------------------------------------------------
// Round-trip (spec P4)
// -----------------------------------------------------------------------------

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Record{
		{Resource: "", Offset: 0, Updating: false},
		{Resource: "ab49ea5d-3745-4c53-8e95-000000000001", Offset: 3 * 2048 * 512, Updating: false},
		{Resource: "x", Offset: 99999999999, Updating: true},
	}

	for _, want := range cases {
		buf, err := Encode(want)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", want, err)
		}

		if len(buf) != Size {
			t.Fatalf("Encode(%+v) produced %d bytes, want %d", want, len(buf), Size)
		}

		got, err := Decode(buf[:])
		if err != nil {
			t.Fatalf("Decode(Encode(%+v)): %v", want, err)
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestEncode_ResourceTooLong(t *testing.T) {
	long := make([]byte, 49)
	for i := range long {
		long[i] = 'a'
	}

	_, err := Encode(Record{Resource: string(long)})

	var be *xerrors.BaseError
	if !errors.As(err, &be) {
		t.Fatalf("expected *xerrors.BaseError, got %T (%v)", err, err)
	}

	if be.Code() != xerrors.ErrorCodeInvalidInput {
		t.Fatalf("code = %v, want %v", be.Code(), xerrors.ErrorCodeInvalidInput)
	}
}

func TestDecode_WrongLength(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assertInvalidRecord(t, err, xerrors.ReasonCannotUnpack)
}

func TestDecode_BadSeparator(t *testing.T) {
	buf, err := Encode(Record{Resource: "r1", Offset: 42})
	if err != nil {
		t.Fatalf("setup Encode: %v", err)
	}

	buf[offResourceSep] = 'X' // corrupt the NUL separator after the resource field

	_, err = Decode(buf[:])
	assertInvalidRecord(t, err, xerrors.ReasonCannotUnpack)
}

func TestDecode_NonDigitOffset(t *testing.T) {
	buf, err := Encode(Record{Resource: "r1", Offset: 42})
	if err != nil {
		t.Fatalf("setup Encode: %v", err)
	}

	buf[offOffset] = 'z'

	_, err = Decode(buf[:])
	assertInvalidRecord(t, err, xerrors.ReasonCannotParseOffset)
}

func TestDecode_NonASCIIResource(t *testing.T) {
	buf, err := Encode(Record{Resource: "r1", Offset: 42})
	if err != nil {
		t.Fatalf("setup Encode: %v", err)
	}

	buf[0] = 0xff

	_, err = Decode(buf[:])
	assertInvalidRecord(t, err, xerrors.ReasonCannotDecodeResource)
}

func assertInvalidRecord(t *testing.T, err error, want xerrors.RecordReason) {
	t.Helper()

	var re *xerrors.RecordError
	if !errors.As(err, &re) {
		t.Fatalf("expected *xerrors.RecordError, got %T (%v)", err, err)
	}

	if re.Reason() != want {
		t.Fatalf("reason = %q, want %q", re.Reason(), want)
	}
}

func TestMetadataBlock_RoundTrip(t *testing.T) {
	want := Metadata{Lockspace: "LS", Timestamp: 1234567890, Updating: true}

	buf, err := EncodeMetadataBlock(want, 512)
	if err != nil {
		t.Fatalf("EncodeMetadataBlock: %v", err)
	}

	if len(buf) != 512 {
		t.Fatalf("len(buf) = %d, want 512", len(buf))
	}

	got, err := DecodeMetadataBlock(buf)
	if err != nil {
		t.Fatalf("DecodeMetadataBlock: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMetadataBlock_BadMagic(t *testing.T) {
	buf, err := EncodeMetadataBlock(Metadata{Lockspace: "LS"}, 512)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	buf[0] ^= 0xff

	_, err = DecodeMetadataBlock(buf)
	assertInvalidRecord(t, err, xerrors.ReasonCannotUnpack)
}
