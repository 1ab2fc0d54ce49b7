// Package seed derives independent deterministic random generators from a
// single experiment seed. Nothing here touches package-level generators.
package seed

import "math/rand/v2"

const (
	streamLoader uint64 = iota + 1
	streamInit
	streamDevice
)

// CPU is the device index that disables the accelerator stream.
const CPU = -1

// Context carries the experiment seed to every subsystem that needs randomness.
type Context struct {
	seed   int64
	device int
}

// New returns a Context for seed on the given device.
func New(seed int64, device int) Context {
	return Context{seed: seed, device: device}
}

// Seed reports the experiment seed.
func (c Context) Seed() int64 {
	return c.seed
}

// Loader returns the generator used for batch shuffling.
func (c Context) Loader() *rand.Rand {
	return c.stream(streamLoader)
}

// Init returns the generator used for parameter initialization.
func (c Context) Init() *rand.Rand {
	return c.stream(streamInit)
}

// Device returns the accelerator generator. It is only derived when a
// device other than CPU was requested, and is reserved: no accelerator
// backend consumes it yet.
func (c Context) Device() (*rand.Rand, bool) {
	if c.device == CPU {
		return nil, false
	}
	return c.stream(streamDevice), true
}

func (c Context) stream(id uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(c.seed), id))
}
