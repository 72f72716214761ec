package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"tiledswarm.ai/internal/sim/grid"
)

// EncodeColours encodes row-major tile colours into base64(varint pairs).
// The pairs are (colour, run_len) repeated. Clustered grids collapse to a
// handful of runs.
func EncodeColours(cs []grid.Colour) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cs) {
		c := cs[i]
		run := 1
		for j := i + 1; j < len(cs) && cs[j] == c; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeColours reverses EncodeColours. want is the expected tile count;
// a stream that decodes to any other length is rejected.
func DecodeColours(b64 string, want int) ([]grid.Colour, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]grid.Colour, 0, want)
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c != uint64(grid.Black) && c != uint64(grid.White) {
			return nil, fmt.Errorf("colour out of range: %d", c)
		}
		if run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d tiles", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, grid.Colour(c))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d tiles, want %d", len(out), want)
	}
	return out, nil
}
