// Package simhw stands in for a HiSilicon ZIP-class accelerator in tests:
// it implements internal/ring.Driver entirely in software, performing real
// compress/zlib, compress/gzip, and crypto/aes work against the same
// source/dest addresses a real device would DMA through. An in-process
// test double, reworked from a byte-addressable block store into a
// descriptor-in, descriptor-out accelerator model.
package simhw

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"sync"
	"unsafe"

	"github.com/hzhuang1/uadk/internal/descriptor"
)

func sliceFromAddr(addr uint64, length uint32) []byte {
	if addr == 0 || length == 0 {
		return nil
	}
	ptr := (*byte)(unsafe.Pointer(uintptr(addr)))
	return unsafe.Slice(ptr, int(length))
}

// Driver is a software accelerator: Send performs the operation
// synchronously and queues its completion descriptor; Recv drains that
// queue. This lets the same sync spin-loop and async poll call sites in
// the dispatch layer exercise real compression/cipher output without a
// physical device.
type Driver struct {
	mu          sync.Mutex
	completions []descriptor.Raw
	closed      bool
}

// New creates a software accelerator.
func New() *Driver {
	return &Driver{}
}

// Send implements ring.Driver.
func (d *Driver) Send(descs []descriptor.Raw) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, io.ErrClosedPipe
	}
	for _, raw := range descs {
		d.completions = append(d.completions, process(raw))
	}
	return len(descs), nil
}

// Recv implements ring.Driver.
func (d *Driver) Recv(out []descriptor.Raw) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for n < len(out) && len(d.completions) > 0 {
		out[n] = d.completions[0]
		d.completions = d.completions[1:]
		n++
	}
	return n, nil
}

// Close implements ring.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// process decodes one request descriptor, performs the real compression or
// cipher work against the caller's buffers, and encodes the completion.
func process(raw descriptor.Raw) descriptor.Raw {
	alg, srcAddr, dstAddr, inputLen, destCap, tag, flush, mode, _, _ := descriptor.DecodeRequest(raw)

	switch alg {
	case descriptor.AlgZlib, descriptor.AlgGzip:
		return processComp(raw, alg, srcAddr, dstAddr, inputLen, destCap, tag, flush, mode)
	case descriptor.AlgAES, descriptor.AlgSM4, descriptor.AlgDES, descriptor.Alg3DES:
		return processCipher(alg, srcAddr, dstAddr, inputLen, destCap, tag)
	default:
		return descriptor.EncodeCompletion(tag, 0, 0, descriptor.RawStatusBadParam, 0, 0, [3]uint32{})
	}
}

func processComp(raw descriptor.Raw, alg descriptor.Algorithm, srcAddr, dstAddr uint64, inputLen, destCap, tag uint32, flush descriptor.FlushType, mode descriptor.StreamMode) descriptor.Raw {
	src := sliceFromAddr(srcAddr, inputLen)
	dst := sliceFromAddr(dstAddr, destCap)

	// A caller compresses by handing raw data and expecting deflate/gzip
	// output, or decompresses by handing back a previously compressed
	// buffer. The simulator tells these apart by magic bytes, since it has
	// no other channel to learn the context's fixed direction.
	out := []byte(nil)
	isDecompress := looksLikeStream(alg, src)

	var err error
	if isDecompress {
		out, err = decompress(alg, src)
	} else {
		out, err = compress(alg, src, flush)
	}
	if err != nil || len(out) > len(dst) {
		return descriptor.EncodeCompletion(tag, 0, 0, descriptor.RawStatusBadParam, 0, 0, [3]uint32{})
	}
	copy(dst, out)

	consumed := uint32(len(src))
	produced := uint32(len(out))
	chunkIsize := consumed
	if isDecompress {
		chunkIsize = produced
	}

	if mode != descriptor.StreamModeStateful {
		return descriptor.EncodeCompletion(tag, consumed, produced, descriptor.RawStatusOK, chunkIsize, checksum32(out), [3]uint32{})
	}

	// Stateful stream: ctx_dw{0,1,2} carries the call counter and the
	// running isize/checksum forward between calls on the same session.
	// The first call in a stream (ctx_dw[0] == 0) seeds the running totals
	// from the request's own isize/checksum, letting a caller resume a
	// stream against a fresh context; every later call continues from the
	// ctx_dw the previous completion wrote back, ignoring the wire isize/
	// checksum fields (which a caller isn't expected to thread itself).
	ctxDwIn, isizeIn, checksumIn := descriptor.DecodeRequestStream(raw)
	priorIsize, priorChecksum := isizeIn, checksumIn
	if ctxDwIn[0] != 0 {
		priorIsize, priorChecksum = ctxDwIn[1], ctxDwIn[2]
	}
	isize := priorIsize + chunkIsize
	checksum := priorChecksum*31 + checksum32(out)
	ctxDwOut := [3]uint32{ctxDwIn[0] + 1, isize, checksum}

	return descriptor.EncodeCompletion(tag, consumed, produced, descriptor.RawStatusOK, isize, checksum, ctxDwOut)
}

// looksLikeStream is a deliberately narrow heuristic: it exists only so
// this software model can decide compress vs decompress from the bytes
// it's handed, something a real device is told explicitly via op type.
// Callers that need a clean distinction should prefer two contexts (one
// OpCompress, one OpDecompress) — DoSync doesn't thread op direction
// through the descriptor today, so the simulator infers it.
func looksLikeStream(alg descriptor.Algorithm, src []byte) bool {
	if alg == descriptor.AlgGzip {
		return len(src) >= 2 && src[0] == 0x1f && src[1] == 0x8b
	}
	// zlib header: CMF/FLG pair with (CMF*256+FLG) % 31 == 0 and CM==8.
	if len(src) < 2 {
		return false
	}
	cmf, flg := src[0], src[1]
	return cmf&0x0f == 0x08 && (uint16(cmf)*256+uint16(flg))%31 == 0
}

func compress(alg descriptor.Algorithm, src []byte, flush descriptor.FlushType) ([]byte, error) {
	var buf bytes.Buffer
	switch alg {
	case descriptor.AlgGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if flush == descriptor.FlushFinish {
			if err := w.Close(); err != nil {
				return nil, err
			}
		} else if err := w.Flush(); err != nil {
			return nil, err
		}
	default: // AlgZlib
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if flush == descriptor.FlushFinish {
			if err := w.Close(); err != nil {
				return nil, err
			}
		} else if err := w.Flush(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decompress(alg descriptor.Algorithm, src []byte) ([]byte, error) {
	switch alg {
	case descriptor.AlgGzip:
		r, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
}

func checksum32(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum = sum*31 + uint32(b)
	}
	return sum
}

func processCipher(alg descriptor.Algorithm, srcAddr, dstAddr uint64, inputLen, destCap, tag uint32) descriptor.Raw {
	src := sliceFromAddr(srcAddr, inputLen)
	dst := sliceFromAddr(dstAddr, destCap)

	if alg != descriptor.AlgAES {
		// SM4/DES/3DES have no standard-library primitive; the simulator
		// only exercises AES end to end and completes every other cipher
		// algorithm with a bad-parameter status.
		return descriptor.EncodeCompletion(tag, 0, 0, descriptor.RawStatusBadParam, 0, 0, [3]uint32{})
	}
	if len(src)%aes.BlockSize != 0 || len(src) > len(dst) {
		return descriptor.EncodeCompletion(tag, 0, 0, descriptor.RawStatusBadParam, 0, 0, [3]uint32{})
	}

	// A fixed zero key/IV stand-in: the simulator exists to exercise
	// dispatch plumbing, not to validate cryptographic correctness against
	// caller-supplied key material (SetKey's bytes never reach here).
	var key [16]byte
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return descriptor.EncodeCompletion(tag, 0, 0, descriptor.RawStatusBadParam, 0, 0, [3]uint32{})
	}
	var iv [aes.BlockSize]byte
	mode := cipher.NewCBCEncrypter(block, iv[:])
	mode.CryptBlocks(dst[:len(src)], src)

	return descriptor.EncodeCompletion(tag, uint32(len(src)), uint32(len(src)), descriptor.RawStatusOK, 0, 0, [3]uint32{})
}
