package uadk

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
	"github.com/hzhuang1/uadk/internal/descriptor"
	"github.com/hzhuang1/uadk/internal/sched"
)

// SessionHandle is a sealed, opaque session reference (spec §9: "model
// session handles as a small sealed type, not a raw pointer, resolved
// through an internal table"). The zero value never resolves to a live
// session.
type SessionHandle uuid.UUID

// SessionSetup is the caller-supplied configuration for AllocSess.
type SessionSetup struct {
	Algorithm descriptor.Algorithm
	OpType    OpType
	Mode      sched.Mode
	NumaID    int
	// XTS halves the effective AES key-length check (spec §4.6): a 32/48/64
	// byte key is split into two 16/24/32 byte tweak+data halves.
	XTS bool
}

type session struct {
	alg      descriptor.Algorithm
	opType   OpType
	xts      bool
	key      []byte
	schedKey sched.Key

	// streamCtxBuf is the sync-stream scratch buffer, allocated for every
	// sync-mode session and never for async ones. streamPos starts NEW and
	// transitions to OLD after the first successful do_stream call.
	streamCtxBuf []byte
	streamPos    descriptor.StreamPos
}

var (
	sessionsMu sync.RWMutex
	sessions   = map[uuid.UUID]*session{}
)

// AllocSess creates a session bound to one op type/algorithm/scheduling
// key (spec §4.6 alloc_sess). Stream-capable sync sessions get a
// StreamCtxBufSize scratch buffer; cipher sessions get an empty key buffer
// that SetKey must fill before first use.
func AllocSess(setup SessionSetup) (SessionHandle, error) {
	s := &session{
		alg:       setup.Algorithm,
		opType:    setup.OpType,
		xts:       setup.XTS,
		streamPos: descriptor.StreamPosNew,
		schedKey:  sched.Key{OpType: int(setup.OpType), Mode: setup.Mode, NumaID: setup.NumaID},
	}
	if setup.Mode == sched.ModeSync {
		s.streamCtxBuf = make([]byte, StreamCtxBufSize)
	}
	if isCipherOp(setup.OpType) {
		s.key = make([]byte, 0, CipherKeyBufSize)
	}

	h := uuid.New()
	sessionsMu.Lock()
	sessions[h] = s
	sessionsMu.Unlock()
	return SessionHandle(h), nil
}

// FreeSess releases a session, wiping its key material first (spec §4.6
// free_sess). Freeing an unknown handle is an invalid-parameter error, not
// a silent no-op — callers are expected to free exactly once.
func FreeSess(h SessionHandle) error {
	sessionsMu.Lock()
	defer sessionsMu.Unlock()
	s, ok := sessions[uuid.UUID(h)]
	if !ok {
		return NewError("FREE_SESS", KindInvalidParam, "unknown session handle")
	}
	for i := range s.key {
		s.key[i] = 0
	}
	delete(sessions, uuid.UUID(h))
	return nil
}

func lookupSession(h SessionHandle) (*session, error) {
	sessionsMu.RLock()
	defer sessionsMu.RUnlock()
	s, ok := sessions[uuid.UUID(h)]
	if !ok {
		return nil, NewError("LOOKUP_SESS", KindInvalidParam, "unknown session handle")
	}
	return s, nil
}

// weakDESKeys are the four classic DES keys whose two halves are
// identical under the Feistel schedule, producing an involutory cipher
// (spec §4.6 set_key).
var weakDESKeys = [][8]byte{
	{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01},
	{0xFE, 0xFE, 0xFE, 0xFE, 0xFE, 0xFE, 0xFE, 0xFE},
	{0xE0, 0xE0, 0xE0, 0xE0, 0xF1, 0xF1, 0xF1, 0xF1},
	{0x1F, 0x1F, 0x1F, 0x1F, 0x0E, 0x0E, 0x0E, 0x0E},
}

func isWeakDESKey(key []byte) bool {
	if len(key) != 8 {
		return false
	}
	for _, weak := range weakDESKeys {
		if bytes.Equal(key, weak[:]) {
			return true
		}
	}
	return false
}

// SetKey installs cipher key material on a session, validating length
// against the algorithm's accepted sizes and rejecting known-weak DES keys
// (spec §4.6 set_key). Non-cipher sessions reject any call.
func SetKey(h SessionHandle, key []byte) error {
	s, err := lookupSession(h)
	if err != nil {
		return err
	}
	if !isCipherOp(s.opType) {
		return NewError("SET_KEY", KindInvalidParam, "session is not a cipher session")
	}

	keyLen := len(key)
	if s.xts {
		if keyLen%2 != 0 {
			return NewError("SET_KEY", KindInvalidParam, "XTS key must split evenly into tweak and data halves")
		}
		keyLen /= 2
	}

	switch s.alg {
	case descriptor.AlgAES:
		if keyLen != 16 && keyLen != 24 && keyLen != 32 {
			return NewError("SET_KEY", KindInvalidParam, "AES key must be 16/24/32 bytes")
		}
	case descriptor.AlgSM4:
		if keyLen != 16 {
			return NewError("SET_KEY", KindInvalidParam, "SM4 key must be 16 bytes")
		}
	case descriptor.AlgDES:
		if keyLen != 8 {
			return NewError("SET_KEY", KindInvalidParam, "DES key must be 8 bytes")
		}
		if isWeakDESKey(key) {
			return NewError("SET_KEY", KindInvalidParam, "DES key is a known weak key")
		}
	case descriptor.Alg3DES:
		if keyLen != 16 && keyLen != 24 {
			return NewError("SET_KEY", KindInvalidParam, "3DES key must be 16/24 bytes")
		}
	default:
		return NewError("SET_KEY", KindInvalidParam, "session algorithm is not a cipher algorithm")
	}

	s.key = append(s.key[:0], key...)
	return nil
}
