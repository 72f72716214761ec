package episode

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/swarm"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// StateDigest hashes everything that can influence future ticks: the tick,
// the grid, every agent in arena order and the random source.
func (w *World) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.tick)
	digestWriteI64(h, &tmp, int64(w.grid.Width()))
	digestWriteI64(h, &tmp, int64(w.grid.Height()))
	for _, c := range w.grid.Colours() {
		h.Write([]byte{byte(c)})
	}
	h.Write([]byte{byte(w.correct), byte(w.malicious), boolByte(w.done)})

	for _, m := range w.swarm.Members() {
		switch a := m.(type) {
		case *swarm.SwarmAgent:
			h.Write([]byte{'S'})
			digestBody(h, &tmp, &a.Body)
			st := a.State()
			h.Write([]byte{boolByte(st.Sensing), boolByte(st.Committed)})
			digestWriteI64(h, &tmp, int64(st.Observed))
			digestWriteI64(h, &tmp, int64(st.WhiteObserved))
			digestWriteF64(h, &tmp, st.Collective)
			digestWriteF64(h, &tmp, st.Weights[0])
			digestWriteF64(h, &tmp, st.Weights[1])
		case *swarm.MaliciousAgent:
			h.Write([]byte{'M'})
			digestBody(h, &tmp, &a.Body)
			digestWriteI64(h, &tmp, int64(a.MaliciousOpinion()))
		}
	}

	if b, err := w.src.MarshalBinary(); err == nil {
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestBody(h hashWriter, tmp *[8]byte, b *swarm.Body) {
	cell, placed := b.CurrentCell()
	h.Write([]byte{boolByte(placed)})
	digestCoord(h, tmp, cell)
	digestWriteI64(h, tmp, int64(b.Heading()))
	visited := b.VisitedCells()
	digestWriteU64(h, tmp, uint64(len(visited)))
	for _, c := range visited {
		digestCoord(h, tmp, c)
	}
}

func digestCoord(h hashWriter, tmp *[8]byte, c grid.Coord) {
	digestWriteI64(h, tmp, int64(c.Row))
	digestWriteI64(h, tmp, int64(c.Col))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
