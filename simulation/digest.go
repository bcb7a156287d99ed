package simulation

import (
	"encoding/binary"
	"math"

	"github.com/aukilabs/flock/models"
	"github.com/cespare/xxhash/v2"
)

// Digest returns a hash of the population state. Two simulations created with
// the same config and seed have the same digest after the same number of
// ticks.
func (s *Simulation) Digest() uint64 {
	return Digest(s.Agents)
}

// Digest hashes the position and velocity of the agents, in order.
func Digest(agents []*models.Agent) uint64 {
	h := xxhash.New()
	buf := make([]byte, 32)

	for _, a := range agents {
		binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(a.P.X))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(a.P.Y))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(a.V.X))
		binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(a.V.Y))
		h.Write(buf)
	}
	return h.Sum64()
}
