// Package descriptor implements the Hardware Descriptor Codec (HDC): a pure
// function layer translating generic request/response messages to and from
// the 32-word fixed-layout descriptor the device consumes (spec §4.2, §6).
//
// Encode/Decode hold no state of their own; all locking and pool bookkeeping
// live in the dispatch layer.
package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/hzhuang1/uadk/internal/constants"
)

// Raw is the in-memory, word-indexed view of one 32-word descriptor. Word
// indices match the offsets in spec §6 exactly.
type Raw [constants.DescriptorWords]uint32

// word offsets, named per the §6 table.
const (
	wConsumed        = 0
	wProduced        = 1
	wStatus          = 3
	wInputDataLength = 4
	wFlushBits       = 7
	wAlgorithm       = 9
	wTag             = 13
	wDestAvailOut    = 14
	wCtxDw0          = 15
	wSourceAddrLo    = 18
	wSourceAddrHi    = 19
	wDestAddrLo      = 20
	wDestAddrHi      = 21
	wStreamCtxAddrLo = 22
	wStreamCtxAddrHi = 23
	wCtxDw1          = 28
	wCtxDw2          = 29
	wIsize           = 30
	wChecksum        = 31
)

// flushBitsOffset is the bit position within word 7 where the packed
// flush/mode/pos triple begins (spec §4.2).
const flushBitsOffset = 25

const (
	flushBitPos   = flushBitsOffset + 0 // flush_type: FINISH=1, SYNC_FLUSH=0
	streamModeBit = flushBitsOffset + 1 // stream_mode: STATEFUL=1, STATELESS=0
	streamPosBit  = flushBitsOffset + 2 // stream_pos: NEW=1, OLD=0
)

// Algorithm codes (spec §4.2, §6).
type Algorithm uint8

const (
	AlgZlib Algorithm = 0x02
	AlgGzip Algorithm = 0x03
)

// Cipher algorithm codes, supplementing the compression codes above per
// SPEC_FULL.md §12 (grounded on wd_cipher.c). These occupy the same
// low-byte algorithm field as the compression codes; callers never mix
// compression and cipher requests on the same context (op-class is fixed
// per Context).
const (
	AlgAES  Algorithm = 0x10
	AlgSM4  Algorithm = 0x11
	Alg3DES Algorithm = 0x12
	AlgDES  Algorithm = 0x13
)

// FlushType selects whether a descriptor terminates a compression stream.
type FlushType uint8

const (
	FlushSyncFlush FlushType = 0
	FlushFinish    FlushType = 1
)

// StreamMode selects stateless (one-shot) vs stateful (carry LZ77 window
// state in the session's stream-context buffer) operation.
type StreamMode uint8

const (
	StreamModeStateless StreamMode = 0
	StreamModeStateful  StreamMode = 1
)

// StreamPos marks whether a call starts a new stream or continues one.
type StreamPos uint8

const (
	StreamPosOld StreamPos = 0
	StreamPosNew StreamPos = 1
)

// Status is the decoded terminal status of a completed descriptor.
type Status uint8

const (
	StatusOK              Status = 0
	StatusInputParamError Status = 1
)

// terminalSuccess holds the raw status byte values that decode to StatusOK
// (spec §4.2, §6): 0x00 clean, 0x0D negative-compression, 0x10
// CRC-error-but-done, 0x13 decompress-end.
var terminalSuccess = map[uint8]bool{
	0x00: true,
	0x0D: true,
	0x10: true,
	0x13: true,
}

// ErrSpuriousCompletion is returned by DecodeComp/DecodeCipher when a
// completion reports zero consumed and zero produced on an otherwise clean
// status — spec's EAGAIN: "spurious wakeup, caller retries."
var ErrSpuriousCompletion = fmt.Errorf("descriptor: spurious completion (consumed=0, produced=0)")

// CompRequest is the generic compression/decompression request message
// handed to EncodeComp.
type CompRequest struct {
	Algorithm     Algorithm
	SourceAddr    uint64
	DestAddr      uint64
	InputLen      uint32
	DestCap       uint32
	Tag           uint32 // 0 for sync requests
	Flush         FlushType
	Mode          StreamMode
	Pos           StreamPos
	StreamCtxAddr uint64 // 0 if the session carries no stream scratch
	Isize         uint32 // continuation: gzip trailing size carried in
	Checksum      uint32 // continuation: gzip trailing checksum carried in
	// CtxDw carries ctx_dw{0,1,2} forward into a stateful stream call —
	// the device's own continuation state from the previous completion on
	// this session, read back out of the session's stream scratch.
	CtxDw [3]uint32
}

// CompResponse is the generic response decoded from a completed descriptor.
type CompResponse struct {
	Consumed uint32
	Produced uint32
	Status   Status
	Isize    uint32
	Checksum uint32
	// CtxDw holds ctx_dw{0,1,2} as read back from the descriptor; valid
	// only when the originating request carried a non-zero StreamCtxAddr.
	CtxDw [3]uint32
}

// EncodeComp translates a compression/decompression request into the
// 32-word descriptor the device consumes (spec §4.2).
func EncodeComp(req CompRequest) Raw {
	var r Raw

	r[wAlgorithm] = uint32(req.Algorithm)
	r[wSourceAddrLo] = uint32(req.SourceAddr)
	r[wSourceAddrHi] = uint32(req.SourceAddr >> 32)
	r[wDestAddrLo] = uint32(req.DestAddr)
	r[wDestAddrHi] = uint32(req.DestAddr >> 32)
	r[wInputDataLength] = req.InputLen

	destAvail := req.DestCap
	if destAvail < constants.MinDestAvailOut {
		destAvail = constants.MinDestAvailOut
	}
	r[wDestAvailOut] = destAvail

	var flushBits uint32
	flushBits |= uint32(req.Flush&1) << flushBitPos
	flushBits |= uint32(req.Mode&1) << streamModeBit
	flushBits |= uint32(req.Pos&1) << streamPosBit
	r[wFlushBits] = flushBits

	r[wTag] = req.Tag

	if req.StreamCtxAddr != 0 {
		scratchAddr := req.StreamCtxAddr + constants.StreamCtxReserved
		r[wStreamCtxAddrLo] = uint32(scratchAddr)
		r[wStreamCtxAddrHi] = uint32(scratchAddr >> 32)
	}

	r[wIsize] = req.Isize
	r[wChecksum] = req.Checksum

	if req.StreamCtxAddr != 0 {
		r[wCtxDw0] = req.CtxDw[0]
		r[wCtxDw1] = req.CtxDw[1]
		r[wCtxDw2] = req.CtxDw[2]
	}

	return r
}

// DecodeComp translates a completed descriptor into a generic response.
//
// A non-nil error is ErrSpuriousCompletion (the "EAGAIN" case in spec §4.2)
// and nothing else: a bad terminal status is reported through
// resp.Status, not through the error return, per spec §7's BAD_STATUS row.
func DecodeComp(raw Raw) (CompResponse, error) {
	var resp CompResponse

	resp.Consumed = raw[wConsumed]
	resp.Produced = raw[wProduced]

	statusByte := uint8(raw[wStatus] & 0xFF)
	if terminalSuccess[statusByte] {
		resp.Status = StatusOK
	} else {
		resp.Status = StatusInputParamError
	}

	resp.Isize = raw[wIsize]
	resp.Checksum = raw[wChecksum]

	// Completion descriptors never echo the stream-ctx address back (that
	// field only has meaning on the request side); ctx_dw{0,1,2} is read
	// unconditionally and is simply zero for non-stream completions.
	resp.CtxDw[0] = raw[wCtxDw0]
	resp.CtxDw[1] = raw[wCtxDw1]
	resp.CtxDw[2] = raw[wCtxDw2]

	if resp.Status == StatusOK && resp.Consumed == 0 && resp.Produced == 0 {
		return resp, ErrSpuriousCompletion
	}

	return resp, nil
}

// CipherRequest is the generic cipher request message handed to
// EncodeCipher (SPEC_FULL.md §12, grounded on wd_cipher.c). It reuses the
// compression descriptor's generic source/dest/length/tag slots; the
// stream-specific fields (flush, mode, pos, stream ctx) are unused for
// cipher ops.
type CipherRequest struct {
	Algorithm  Algorithm
	SourceAddr uint64
	DestAddr   uint64
	InputLen   uint32
	DestCap    uint32
	Tag        uint32
}

// CipherResponse is the generic response decoded from a completed cipher
// descriptor.
type CipherResponse struct {
	Consumed uint32
	Produced uint32
	Status   Status
}

// EncodeCipher translates a cipher request into a 32-word descriptor.
func EncodeCipher(req CipherRequest) Raw {
	var r Raw
	r[wAlgorithm] = uint32(req.Algorithm)
	r[wSourceAddrLo] = uint32(req.SourceAddr)
	r[wSourceAddrHi] = uint32(req.SourceAddr >> 32)
	r[wDestAddrLo] = uint32(req.DestAddr)
	r[wDestAddrHi] = uint32(req.DestAddr >> 32)
	r[wInputDataLength] = req.InputLen
	destAvail := req.DestCap
	if destAvail < constants.MinDestAvailOut {
		destAvail = constants.MinDestAvailOut
	}
	r[wDestAvailOut] = destAvail
	r[wTag] = req.Tag
	return r
}

// DecodeCipher translates a completed cipher descriptor into a response.
func DecodeCipher(raw Raw) (CipherResponse, error) {
	var resp CipherResponse
	resp.Consumed = raw[wConsumed]
	resp.Produced = raw[wProduced]

	statusByte := uint8(raw[wStatus] & 0xFF)
	if terminalSuccess[statusByte] {
		resp.Status = StatusOK
	} else {
		resp.Status = StatusInputParamError
	}

	if resp.Status == StatusOK && resp.Consumed == 0 && resp.Produced == 0 {
		return resp, ErrSpuriousCompletion
	}
	return resp, nil
}

// Tag returns the async correlation tag embedded in a descriptor.
func (r Raw) Tag() uint32 { return r[wTag] }

// Raw status byte values a software device simulator can hand to
// EncodeCompletion — RawStatusOK is the clean-completion code from
// terminalSuccess; RawStatusBadParam is any code outside that set.
const (
	RawStatusOK       uint8 = 0x00
	RawStatusBadParam uint8 = 0xFF
)

// DecodeRequest extracts the request-side fields a real device's DMA
// engine would read off a submitted descriptor — the inverse of
// EncodeComp/EncodeCipher. It exists for software device simulators
// standing in for hardware in tests, which otherwise have no way to see
// what was submitted.
func DecodeRequest(raw Raw) (algorithm Algorithm, sourceAddr, destAddr uint64, inputLen, destCap, tag uint32, flush FlushType, mode StreamMode, pos StreamPos, streamCtxAddr uint64) {
	algorithm = Algorithm(raw[wAlgorithm])
	sourceAddr = uint64(raw[wSourceAddrLo]) | uint64(raw[wSourceAddrHi])<<32
	destAddr = uint64(raw[wDestAddrLo]) | uint64(raw[wDestAddrHi])<<32
	inputLen = raw[wInputDataLength]
	destCap = raw[wDestAvailOut]
	tag = raw[wTag]
	flushBits := raw[wFlushBits]
	flush = FlushType((flushBits >> flushBitPos) & 1)
	mode = StreamMode((flushBits >> streamModeBit) & 1)
	pos = StreamPos((flushBits >> streamPosBit) & 1)
	streamCtxAddr = uint64(raw[wStreamCtxAddrLo]) | uint64(raw[wStreamCtxAddrHi])<<32
	return
}

// DecodeRequestStream extracts the stream-continuation words a software
// device simulator needs to honor a stateful request: the ctx_dw{0,1,2}
// carried in from the previous completion, and the isize/checksum
// accumulators the caller threads through Request across calls.
func DecodeRequestStream(raw Raw) (ctxDw [3]uint32, isize, checksum uint32) {
	ctxDw[0] = raw[wCtxDw0]
	ctxDw[1] = raw[wCtxDw1]
	ctxDw[2] = raw[wCtxDw2]
	isize = raw[wIsize]
	checksum = raw[wChecksum]
	return
}

// EncodeCompletion builds a raw descriptor carrying only the fields the
// decode side reads back (spec §6). Software device simulators use this in
// place of real hardware writing the descriptor's completion words.
// ctxDw is the updated stream-continuation state; pass the zero value for
// non-stream completions.
func EncodeCompletion(tag, consumed, produced uint32, statusByte uint8, isize, checksum uint32, ctxDw [3]uint32) Raw {
	var r Raw
	r[wTag] = tag
	r[wConsumed] = consumed
	r[wProduced] = produced
	r[wStatus] = uint32(statusByte)
	r[wIsize] = isize
	r[wChecksum] = checksum
	r[wCtxDw0] = ctxDw[0]
	r[wCtxDw1] = ctxDw[1]
	r[wCtxDw2] = ctxDw[2]
	return r
}

// Marshal serializes a descriptor to its 128-byte little-endian wire form.
func (r Raw) Marshal() []byte {
	buf := make([]byte, constants.DescriptorBytes)
	for i, word := range r {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], word)
	}
	return buf
}

// Unmarshal parses a 128-byte little-endian wire descriptor.
func Unmarshal(data []byte) (Raw, error) {
	var r Raw
	if len(data) < constants.DescriptorBytes {
		return r, fmt.Errorf("descriptor: short buffer (%d < %d bytes)", len(data), constants.DescriptorBytes)
	}
	for i := range r {
		r[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return r, nil
}

// GzipHeader is the 10-byte gzip stream header emitted at a NEW stream
// boundary (spec §6: "shown for completeness" — this is the external
// framing layer's responsibility, reproduced here only as a named constant).
// Nothing in this repository emits or checks it.
var GzipHeader = [10]byte{0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03}
