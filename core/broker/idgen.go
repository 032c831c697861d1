package broker

import "sync/atomic"

// IDGenerator hands out subscriber ids for clients that do not pick their own
// names. Ids start at 1 and are unique for the life of the process.
type IDGenerator struct {
	last atomic.Uint64
}

// Next returns a fresh id.
func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued id, 0 if none.
func (g *IDGenerator) Last() uint64 {
	return g.last.Load()
}
