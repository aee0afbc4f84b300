package uadk

import "github.com/hzhuang1/uadk/internal/constants"

// Re-exported tunables for the public API.
const (
	PoolMax          = constants.PoolMax
	InvalidTag       = constants.InvalidTag
	NumaMax          = constants.NumaMax
	MaxRetry         = constants.MaxRetry
	MaxPollRounds    = constants.MaxPollRounds
	DescriptorBytes  = constants.DescriptorBytes
	MinDestAvailOut  = constants.MinDestAvailOut
	StreamCtxBufSize = constants.StreamCtxBufSize
	CipherKeyBufSize = constants.CipherKeyBufSize
)
