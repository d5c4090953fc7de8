package storage

import "testing"

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}

	blob := EncodeVector(in)
	if len(blob) != len(in)*4 {
		t.Fatalf("EncodeVector() length = %d, want %d", len(blob), len(in)*4)
	}

	out, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("DecodeVector()[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeVector_InvalidLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeVector() with 3 bytes should return error")
	}
}
