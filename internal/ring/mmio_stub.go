//go:build !linux

package ring

import (
	"fmt"

	"github.com/hzhuang1/uadk/internal/descriptor"
)

type mmioRing struct{}

func newMMIORing(cfg Config) (*mmioRing, error) {
	return nil, fmt.Errorf("%w: mmio ring requires linux", ErrHWAccess)
}

func (r *mmioRing) Send(descs []descriptor.Raw) (int, error) {
	return 0, fmt.Errorf("%w: mmio ring requires linux", ErrHWAccess)
}

func (r *mmioRing) Recv(out []descriptor.Raw) (int, error) {
	return 0, fmt.Errorf("%w: mmio ring requires linux", ErrHWAccess)
}

func (r *mmioRing) Close() error { return nil }

