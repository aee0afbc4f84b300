package simhw

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"
	"unsafe"

	"github.com/hzhuang1/uadk/internal/descriptor"
)

func send(t *testing.T, d *Driver, raw descriptor.Raw) descriptor.Raw {
	t.Helper()
	if _, err := d.Send([]descriptor.Raw{raw}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	out := make([]descriptor.Raw, 1)
	n, err := d.Recv(out)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completion, got %d", n)
	}
	return out[0]
}

func TestDriver_ZlibCompress(t *testing.T) {
	d := New()
	src := bytes.Repeat([]byte("repeat "), 32)
	dst := make([]byte, 4096)

	raw := descriptor.EncodeComp(descriptor.CompRequest{
		Algorithm: descriptor.AlgZlib,
		SourceAddr: uint64(uintptr(unsafe.Pointer(&src[0]))),
		DestAddr:   uint64(uintptr(unsafe.Pointer(&dst[0]))),
		InputLen:   uint32(len(src)),
		DestCap:    uint32(len(dst)),
		Flush:      descriptor.FlushFinish,
	})

	completed := send(t, d, raw)
	resp, err := descriptor.DecodeComp(completed)
	if err != nil {
		t.Fatalf("DecodeComp failed: %v", err)
	}
	if resp.Status != descriptor.StatusOK {
		t.Fatalf("expected StatusOK, got %v", resp.Status)
	}
	if resp.Produced == 0 || resp.Produced >= uint32(len(src)) {
		t.Fatalf("expected compressed output smaller than input, got %d from %d", resp.Produced, len(src))
	}

	// Confirm the bytes actually decode as a valid zlib stream.
	r, err := zlib.NewReader(bytes.NewReader(dst[:resp.Produced]))
	if err != nil {
		t.Fatalf("output is not valid zlib: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("output is not valid zlib: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("round trip mismatch: got %q, want %q", out, src)
	}
}

func TestDriver_GzipDecompress(t *testing.T) {
	// Build a real gzip stream with the standard library, then hand it to
	// the simulator as a decompress request.
	var compressedBuf bytes.Buffer
	original := []byte("hello from the other side of the pipe")
	gz := gzip.NewWriter(&compressedBuf)
	if _, err := gz.Write(original); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}

	d := New()
	src := compressedBuf.Bytes()
	dst := make([]byte, 4096)

	raw := descriptor.EncodeComp(descriptor.CompRequest{
		Algorithm:  descriptor.AlgGzip,
		SourceAddr: uint64(uintptr(unsafe.Pointer(&src[0]))),
		DestAddr:   uint64(uintptr(unsafe.Pointer(&dst[0]))),
		InputLen:   uint32(len(src)),
		DestCap:    uint32(len(dst)),
		Flush:      descriptor.FlushFinish,
	})

	completed := send(t, d, raw)
	resp, err := descriptor.DecodeComp(completed)
	if err != nil {
		t.Fatalf("DecodeComp failed: %v", err)
	}
	if resp.Status != descriptor.StatusOK {
		t.Fatalf("expected StatusOK, got %v", resp.Status)
	}
	if !bytes.Equal(dst[:resp.Produced], original) {
		t.Fatalf("decompressed mismatch: got %q, want %q", dst[:resp.Produced], original)
	}
}

func TestDriver_TagRoundTrips(t *testing.T) {
	d := New()
	src := []byte("tagged")
	dst := make([]byte, 4096)

	raw := descriptor.EncodeComp(descriptor.CompRequest{
		Algorithm:  descriptor.AlgZlib,
		SourceAddr: uint64(uintptr(unsafe.Pointer(&src[0]))),
		DestAddr:   uint64(uintptr(unsafe.Pointer(&dst[0]))),
		InputLen:   uint32(len(src)),
		DestCap:    uint32(len(dst)),
		Flush:      descriptor.FlushFinish,
		Tag:        42,
	})

	completed := send(t, d, raw)
	if completed.Tag() != 42 {
		t.Fatalf("expected tag 42 to round trip, got %d", completed.Tag())
	}
}

func TestDriver_StatefulStreamAccumulatesAcrossCalls(t *testing.T) {
	d := New()
	chunks := [][]byte{
		[]byte("first chunk of a stateful stream"),
		[]byte("second chunk continuing it"),
	}

	var ctxBuf [64]byte
	var lastIsize uint32
	for i, chunk := range chunks {
		dst := make([]byte, 4096)
		flush := descriptor.FlushSyncFlush
		if i == len(chunks)-1 {
			flush = descriptor.FlushFinish
		}
		ctxDw := readCtxDw(ctxBuf[:])

		raw := descriptor.EncodeComp(descriptor.CompRequest{
			Algorithm:     descriptor.AlgZlib,
			SourceAddr:    uint64(uintptr(unsafe.Pointer(&chunk[0]))),
			DestAddr:      uint64(uintptr(unsafe.Pointer(&dst[0]))),
			InputLen:      uint32(len(chunk)),
			DestCap:       uint32(len(dst)),
			Flush:         flush,
			Mode:          descriptor.StreamModeStateful,
			StreamCtxAddr: uint64(uintptr(unsafe.Pointer(&ctxBuf[0]))),
			CtxDw:         ctxDw,
		})

		completed := send(t, d, raw)
		resp, err := descriptor.DecodeComp(completed)
		if err != nil {
			t.Fatalf("call %d: DecodeComp failed: %v", i, err)
		}
		if resp.Status != descriptor.StatusOK {
			t.Fatalf("call %d: expected StatusOK, got %v", i, resp.Status)
		}
		if resp.Isize <= lastIsize {
			t.Errorf("call %d: expected isize to grow past %d, got %d", i, lastIsize, resp.Isize)
		}
		if resp.CtxDw[0] != uint32(i+1) {
			t.Errorf("call %d: expected ctx_dw[0] call counter %d, got %d", i, i+1, resp.CtxDw[0])
		}
		writeCtxDw(ctxBuf[:], resp.CtxDw)
		lastIsize = resp.Isize
	}
}

func writeCtxDw(buf []byte, dw [3]uint32) {
	for i, v := range dw {
		buf[i*4] = byte(v)
		buf[i*4+1] = byte(v >> 8)
		buf[i*4+2] = byte(v >> 16)
		buf[i*4+3] = byte(v >> 24)
	}
}

func readCtxDw(buf []byte) [3]uint32 {
	var dw [3]uint32
	for i := range dw {
		dw[i] = uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
	}
	return dw
}

func TestNeverCompleteDriver(t *testing.T) {
	d := NeverCompleteDriver{}
	n, err := d.Send(make([]descriptor.Raw, 3))
	if err != nil || n != 3 {
		t.Fatalf("expected Send to accept all descriptors, got n=%d err=%v", n, err)
	}
	out := make([]descriptor.Raw, 1)
	n, err = d.Recv(out)
	if err != nil || n != 0 {
		t.Fatalf("expected Recv to never report a completion, got n=%d err=%v", n, err)
	}
}
