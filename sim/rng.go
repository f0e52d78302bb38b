package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey identifies a reproducible run. Two runs with the same key,
// configuration and operation sequence MUST produce identical outcomes.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// streamMeasurement names the master stream every sampling key is split from.
const streamMeasurement = "measurement"

// === Context ===

// Context is the explicit engine context passed to every operation that
// samples or auto-contracts. It replaces process-wide configuration.
//
// Randomness follows split-then-use: every consumer receives a fresh key via
// NextKey and the master stream advances, so no key is reused.
//
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
type Context struct {
	cfg    EngineConfig
	key    SimulationKey
	master *rand.PCG
	splits uint64
}

// NewContext creates a Context from cfg. It panics if cfg is invalid.
func NewContext(cfg EngineConfig) *Context {
	if err := cfg.Validate(); err != nil {
		panic("NewContext: " + err.Error())
	}
	c := &Context{cfg: cfg}
	c.SetSeed(cfg.Seed)
	return c
}

// SetSeed resets the master stream. Subsequent keys depend only on seed.
func (c *Context) SetSeed(seed int64) {
	c.key = NewSimulationKey(seed)
	c.cfg.Seed = seed
	c.master = rand.NewPCG(uint64(seed), fnv1a64(streamMeasurement))
	c.splits = 0
}

// Key returns the SimulationKey of the current master stream.
func (c *Context) Key() SimulationKey {
	return c.key
}

// NextKey splits a fresh source off the master stream.
func (c *Context) NextKey() rand.Source {
	c.splits++
	return rand.NewPCG(c.master.Uint64(), c.master.Uint64())
}

// Splits returns how many keys have been handed out since the last SetSeed.
func (c *Context) Splits() uint64 {
	return c.splits
}

// Contractions reports whether Kraus and POVM application auto-contract.
func (c *Context) Contractions() bool {
	return c.cfg.Contractions
}

// SetContractions toggles auto-contraction.
func (c *Context) SetContractions(on bool) {
	c.cfg.Contractions = on
}

// Tolerance returns the contraction / completeness tolerance.
func (c *Context) Tolerance() float64 {
	return c.cfg.ContractionTolerance
}

// Config returns a copy of the current configuration.
func (c *Context) Config() EngineConfig {
	return c.cfg
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
