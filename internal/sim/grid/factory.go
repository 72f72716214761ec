package grid

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParams = errors.New("invalid grid params")

// Rand is the draw source used by the non-clustered colour policy.
type Rand interface {
	Float64() float64
}

type Params struct {
	Width  int
	Height int
	// WhiteRatio is the ratio of white to black tiles, in [0,1].
	WhiteRatio float64
	Clustered  bool
	// Helpful places the white region at low column indices when clustered.
	Helpful bool
}

func (p Params) Validate() error {
	if p.Width < 2 || p.Height < 2 {
		return fmt.Errorf("%w: dims %dx%d must be at least 2x2", ErrInvalidParams, p.Width, p.Height)
	}
	if math.IsNaN(p.WhiteRatio) || p.WhiteRatio < 0 || p.WhiteRatio > 1 {
		return fmt.Errorf("%w: white ratio %v outside [0,1]", ErrInvalidParams, p.WhiteRatio)
	}
	return nil
}

// New builds a grid with empty occupancy. rng is only drawn from by the
// non-clustered policy, once per tile in row-major order.
func New(p Params, rng Rand) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Clustered {
		if p.Helpful {
			return newGrid(p.Width, p.Height, clusteredColours(p.Width, p.Height, p.WhiteRatio, White)), nil
		}
		return newGrid(p.Width, p.Height, clusteredColours(p.Width, p.Height, 1-p.WhiteRatio, Black)), nil
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: non-clustered grid needs a random source", ErrInvalidParams)
	}
	return newGrid(p.Width, p.Height, func(int, int) Colour {
		if rng.Float64() < p.WhiteRatio {
			return White
		}
		return Black
	}), nil
}

// clusteredColours fills floor(width*ratio) whole columns with first, then the
// first round(frac*height) rows of the next column. Rounding is half-to-even.
func clusteredColours(width, height int, ratio float64, first Colour) func(row, col int) Colour {
	whole, frac := math.Modf(float64(width) * ratio)
	fullCols := int(whole)
	rowLimit := int(math.RoundToEven(frac * float64(height)))
	return func(row, col int) Colour {
		if col < fullCols || (col == fullCols && row < rowLimit) {
			return first
		}
		return first.Flip()
	}
}
