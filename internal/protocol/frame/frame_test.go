package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/tlv"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := tlv.EncodeFields([]tlv.Field{tlv.String(1, "lumen")})
	in := Frame{
		Header:  Header{Step: 42, Kind: 2, Origin: 3},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Step != 42 || out.Header.Kind != 2 || out.Header.Origin != 3 {
		t.Fatalf("header mismatch: got=%+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameSkipsHeaderExtension(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen + 4, Step: 7, PayloadLen: 2}
	raw := append(EncodeHeader(h), 0xDE, 0xAD, 0xBE, 0xEF, 'o', 'k')
	out, err := ReadFrame(bytes.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(out.Payload) != "ok" {
		t.Fatalf("expected payload after extension, got %q", out.Payload)
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameRejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name string
		h    Header
		want error
	}{
		{"magic", Header{Magic: 1, Version: Version, HeaderLen: FixedHeaderLen}, ErrBadMagic},
		{"version", Header{Magic: Magic, Version: 9, HeaderLen: FixedHeaderLen}, ErrUnsupportedVersion},
		{"header len", Header{Magic: Magic, Version: Version, HeaderLen: 8}, ErrHeaderLenTooSmall},
		{"payload", Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, PayloadLen: 1 << 40}, ErrPayloadTooLarge},
	}
	for _, tc := range cases {
		_, err := ReadFrame(bytes.NewReader(EncodeHeader(tc.h)), DefaultLimits())
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
