package msgq

import "github.com/NorthFat/msgq/internal/shm"

// Sentinel errors re-exported at the package root so callers never
// need to import the internal transport packages directly to use
// errors.Is against them.
var (
	ErrNotInitialized  = shm.ErrNotInitialized
	ErrIO              = shm.ErrIO
	ErrSizeMismatch    = shm.ErrSizeMismatch
	ErrMessageTooLarge = shm.ErrMessageTooLarge
	ErrSlotExhausted   = shm.ErrSlotExhausted
	ErrTimeout         = shm.ErrTimeout
	ErrInterrupted     = shm.ErrInterrupted
	ErrInvalidArgument = shm.ErrInvalidArgument
)
