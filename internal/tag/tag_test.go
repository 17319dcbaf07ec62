package tag

import (
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	counts := []uint32{0, 1, 31, 32, 33, 127, 128, 4095, 4096, 1 << 20, 1<<28 - 1}
	types := []Type{Bytes, Mode1, Mode2Form1, Mode2Form2}

	for _, typ := range types {
		for _, count := range counts {
			enc := EncodeTag(typ, count)
			gotType, gotCount, next, err := ReadTag(bytes.NewReader(enc), 0)
			if err != nil {
				t.Fatalf("ReadTag(%d,%d): %v", typ, count, err)
			}
			if gotType != typ || gotCount != count {
				t.Fatalf("ReadTag(%d,%d) = (%d,%d)", typ, count, gotType, gotCount)
			}
			if next != int64(len(enc)) {
				t.Fatalf("ReadTag(%d,%d) next = %d, want %d", typ, count, next, len(enc))
			}
		}
	}
}

func TestReadTagSentinel(t *testing.T) {
	enc := EncodeTag(Bytes, Sentinel)
	_, count, _, err := ReadTag(bytes.NewReader(enc), 0)
	if err != nil {
		t.Fatalf("ReadTag(sentinel): %v", err)
	}
	if count != Sentinel {
		t.Fatalf("count = %#x, want sentinel", count)
	}
}

func TestReadTagTruncated(t *testing.T) {
	// A continuation byte with bit 7 set but nothing following must report EOF.
	r := bytes.NewReader([]byte{0x80})
	_, _, _, err := ReadTag(r, 0)
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestReadTagEmpty(t *testing.T) {
	_, _, _, err := ReadTag(bytes.NewReader(nil), 0)
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestPayloadAndLogicalBytes(t *testing.T) {
	cases := []struct {
		typ     Type
		payload int
		logical int
	}{
		{Mode1, 0x803, 2352},
		{Mode2Form1, 0x804, 2336},
		{Mode2Form2, 0x918, 2336},
	}
	for _, c := range cases {
		p, err := PayloadBytes(c.typ)
		if err != nil || p != c.payload {
			t.Errorf("PayloadBytes(%d) = (%d,%v), want %d", c.typ, p, err, c.payload)
		}
		l, err := LogicalBytes(c.typ)
		if err != nil || l != c.logical {
			t.Errorf("LogicalBytes(%d) = (%d,%v), want %d", c.typ, l, err, c.logical)
		}
	}
}

func TestUnknownType(t *testing.T) {
	if _, err := PayloadBytes(Type(4)); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := LogicalBytes(Type(4)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func FuzzReadTag(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add(EncodeTag(Mode1, 100))
	f.Add(EncodeTag(Mode2Form2, 1<<20))
	f.Fuzz(func(t *testing.T, data []byte) {
		typ, count, next, err := ReadTag(bytes.NewReader(data), 0)
		if err != nil {
			return
		}
		if next < 0 || next > int64(len(data)) {
			t.Fatalf("next = %d out of range for input len %d", next, len(data))
		}
		if typ > Mode2Form2 {
			t.Fatalf("type %d out of range", typ)
		}
		_ = count
	})
}
