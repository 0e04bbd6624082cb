package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		width Width
		op    Opcode
		arg   uint32
		want  []byte
	}{
		{"narrow const", WidthNarrow, OpLoadConst, 0, []byte{0x10, 0x00}},
		{"narrow bare", WidthNarrow, OpReturnValue, 0, []byte{0x60, 0x00}},
		{"wide const", WidthWide, OpLoadConst, 0, []byte{0x10, 0x00, 0x00}},
		{"wide bare", WidthWide, OpReturnValue, 0, []byte{0x60}},
		{"wide little endian", WidthWide, OpLoadFast, 0x0102, []byte{0x11, 0x02, 0x01}},
		{"narrow max", WidthNarrow, OpLoadConst, 0xFF, []byte{0x10, 0xFF}},
		{"narrow extended", WidthNarrow, OpLoadConst, 0x1234, []byte{0x70, 0x12, 0x10, 0x34}},
		{"narrow extended zero byte", WidthNarrow, OpLoadConst, 0x10000,
			[]byte{0x70, 0x01, 0x70, 0x00, 0x10, 0x00}},
		{"wide extended", WidthWide, OpLoadConst, 0x12345, []byte{0x70, 0x01, 0x00, 0x10, 0x45, 0x23}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(nil, tt.width, tt.op, tt.arg)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode = % X, want % X", got, tt.want)
			}
			if n := EncodedLen(tt.width, tt.op, tt.arg); n != len(tt.want) {
				t.Errorf("EncodedLen = %d, want %d", n, len(tt.want))
			}

			ins, err := Decode(got, tt.width)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(ins) != 1 {
				t.Fatalf("Decode returned %d instructions, want 1", len(ins))
			}
			if ins[0].Op != tt.op || ins[0].Arg != tt.arg || ins[0].Offset != 0 || ins[0].Size != len(tt.want) {
				t.Errorf("Decode = %+v", ins[0])
			}
		})
	}
}

func TestEncodeAppends(t *testing.T) {
	prefix := []byte{0xAA}
	got := Encode(prefix, WidthNarrow, OpPopTop, 0)
	if !bytes.Equal(got, []byte{0xAA, 0x01, 0x00}) {
		t.Errorf("Encode did not append to prefix: % X", got)
	}
}

func TestBare(t *testing.T) {
	if got := Bare(WidthNarrow, OpReturnValue); !bytes.Equal(got, []byte{0x60, 0x00}) {
		t.Errorf("narrow Bare = % X", got)
	}
	if got := Bare(WidthWide, OpReturnValue); !bytes.Equal(got, []byte{0x60}) {
		t.Errorf("wide Bare = % X", got)
	}
}

func TestDecodeSequence(t *testing.T) {
	var code []byte
	code = Encode(code, WidthWide, OpLoadConst, 1)
	code = Encode(code, WidthWide, OpLoadConst, 2)
	code = Encode(code, WidthWide, OpBinaryAdd, 0)
	code = Encode(code, WidthWide, OpReturnValue, 0)

	ins, err := Decode(code, WidthWide)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wantOps := []Opcode{OpLoadConst, OpLoadConst, OpBinaryAdd, OpReturnValue}
	wantOffsets := []int{0, 3, 6, 7}
	if len(ins) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d", len(ins), len(wantOps))
	}
	for i := range ins {
		if ins[i].Op != wantOps[i] || ins[i].Offset != wantOffsets[i] {
			t.Errorf("instruction %d = %+v, want %s at %d", i, ins[i], wantOps[i], wantOffsets[i])
		}
	}
	if ins[3].End() != len(code) {
		t.Errorf("last End() = %d, want %d", ins[3].End(), len(code))
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		width Width
		code  []byte
		want  error
	}{
		{"narrow odd length", WidthNarrow, []byte{0x10}, ErrTruncated},
		{"wide missing operand", WidthWide, []byte{0x10, 0x00}, ErrTruncated},
		{"wide unknown opcode", WidthWide, []byte{0xEE}, ErrUnknownOpcode},
		{"dangling extended arg", WidthNarrow, []byte{0x70, 0x01}, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, tt.width)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseWidth(t *testing.T) {
	tests := []struct {
		in      string
		want    Width
		wantErr bool
	}{
		{"narrow", WidthNarrow, false},
		{"WIDE", WidthWide, false},
		{"", 0, true},
		{"medium", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseWidth(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWidth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseWidth(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if WidthWide.String() != "wide" || WidthNarrow.String() != "narrow" {
		t.Error("Width.String mismatch")
	}
}

func TestMaxOperand(t *testing.T) {
	if WidthNarrow.MaxOperand() != 0xFF {
		t.Errorf("narrow MaxOperand = %d", WidthNarrow.MaxOperand())
	}
	if WidthWide.MaxOperand() != 0xFFFF {
		t.Errorf("wide MaxOperand = %d", WidthWide.MaxOperand())
	}
}
