//go:build linux

package ring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/hzhuang1/uadk/internal/constants"
	"github.com/hzhuang1/uadk/internal/descriptor"
)

// Control-page layout: the first 24 bytes of the mapped SQ region hold the
// shared head/tail/doorbell words; the descriptor slots follow.
const (
	ctrlSQHead   = 0  // device-owned
	ctrlSQTail   = 4  // user-owned
	ctrlCQHead   = 8  // user-owned
	ctrlCQTail   = 12 // device-owned
	ctrlDoorbell = 16
	ctrlPageSize = 24
)

type mmioRing struct {
	fd      int
	sqMem   []byte
	cqMem   []byte
	sqDepth uint32
	cqDepth uint32
}

func newMMIORing(cfg Config) (*mmioRing, error) {
	sqSize := ctrlPageSize + int(cfg.SQDepth)*constants.DescriptorBytes
	cqSize := int(cfg.CQDepth) * constants.DescriptorBytes

	sqMem, err := unix.Mmap(cfg.FD, 0, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap sq: %v", ErrHWAccess, err)
	}
	cqMem, err := unix.Mmap(cfg.FD, int64(sqSize), cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(sqMem)
		return nil, fmt.Errorf("%w: mmap cq: %v", ErrHWAccess, err)
	}

	return &mmioRing{
		fd:      cfg.FD,
		sqMem:   sqMem,
		cqMem:   cqMem,
		sqDepth: cfg.SQDepth,
		cqDepth: cfg.CQDepth,
	}, nil
}

func (r *mmioRing) word(buf []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[off]))
}

func (r *mmioRing) Close() error {
	if err := unix.Munmap(r.sqMem); err != nil {
		return fmt.Errorf("%w: munmap sq: %v", ErrHWAccess, err)
	}
	if err := unix.Munmap(r.cqMem); err != nil {
		return fmt.Errorf("%w: munmap cq: %v", ErrHWAccess, err)
	}
	return nil
}

// Send copies descriptors starting at the SQ tail, up to the space the
// device-owned head reports free, then issues a release fence before
// advancing tail and ringing the doorbell (spec §4.1: "doorbell writes are
// ordered after SQ tail updates by a release fence").
func (r *mmioRing) Send(descs []descriptor.Raw) (int, error) {
	if len(descs) == 0 {
		return 0, nil
	}

	head := atomic.LoadUint32(r.word(r.sqMem, ctrlSQHead))
	tail := atomic.LoadUint32(r.word(r.sqMem, ctrlSQTail))
	free := r.sqDepth - (tail - head)
	if free == 0 {
		return 0, ErrQueueFull
	}

	n := len(descs)
	if uint32(n) > free {
		n = int(free)
	}

	base := ctrlPageSize
	for i := 0; i < n; i++ {
		idx := (tail + uint32(i)) % r.sqDepth
		off := base + int(idx)*constants.DescriptorBytes
		copy(r.sqMem[off:off+constants.DescriptorBytes], descs[i].Marshal())
	}

	Sfence()
	atomic.StoreUint32(r.word(r.sqMem, ctrlSQTail), tail+uint32(n))
	r.ringDoorbell()

	return n, nil
}

func (r *mmioRing) ringDoorbell() {
	Mfence()
	atomic.AddUint32(r.word(r.sqMem, ctrlDoorbell), 1)
}

// Recv drains completed descriptors from the CQ head. Returning (0, nil)
// means the queue is empty — the normal non-blocking case, not an error.
func (r *mmioRing) Recv(out []descriptor.Raw) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	head := atomic.LoadUint32(r.word(r.sqMem, ctrlCQHead))
	tail := atomic.LoadUint32(r.word(r.sqMem, ctrlCQTail))
	avail := tail - head
	if avail == 0 {
		return 0, nil
	}

	n := len(out)
	if uint32(n) > avail {
		n = int(avail)
	}

	for i := 0; i < n; i++ {
		idx := (head + uint32(i)) % r.cqDepth
		off := int(idx) * constants.DescriptorBytes
		desc, err := descriptor.Unmarshal(r.cqMem[off : off+constants.DescriptorBytes])
		if err != nil {
			return i, fmt.Errorf("%w: %v", ErrHWAccess, err)
		}
		out[i] = desc
	}

	atomic.StoreUint32(r.word(r.sqMem, ctrlCQHead), head+uint32(n))
	return n, nil
}
