package simhw

import "github.com/hzhuang1/uadk/internal/descriptor"

// NeverCompleteDriver accepts sends but never reports a completion — it
// exists to drive the DO_SYNC retry-exhaustion path (spec §8 S5). A DoSync
// against it spins through the full MaxRetry bound before timing out.
type NeverCompleteDriver struct{}

func (NeverCompleteDriver) Send(descs []descriptor.Raw) (int, error) { return len(descs), nil }
func (NeverCompleteDriver) Recv(out []descriptor.Raw) (int, error)   { return 0, nil }
func (NeverCompleteDriver) Close() error                             { return nil }
