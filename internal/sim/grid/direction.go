package grid

import "fmt"

// Direction is the heading of an agent. Values are cyclic mod 4.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// Turn is a signed heading delta.
type Turn int

const (
	TurnLeft  Turn = -1
	TurnRight Turn = 1
)

// WallType is numerically aligned with Direction: a wall of type X blocks
// motion in Direction X.
type WallType int

const (
	WallTop WallType = iota
	WallRight
	WallBottom
	WallLeft
)

type Colour int

const (
	Black Colour = 0
	White Colour = 1
)

// Mod4 returns x mod 4 in [0,3] for any sign of x.
func Mod4(x int) int {
	m := x % 4
	if m < 0 {
		m += 4
	}
	return m
}

func (d Direction) Turn(t Turn) Direction {
	return Direction(Mod4(int(d) + int(t)))
}

func (d Direction) Valid() bool { return d >= Up && d <= Left }

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (w WallType) String() string {
	switch w {
	case WallTop:
		return "TOP"
	case WallRight:
		return "RIGHT"
	case WallBottom:
		return "BOTTOM"
	case WallLeft:
		return "LEFT"
	default:
		return fmt.Sprintf("WallType(%d)", int(w))
	}
}

func (c Colour) Flip() Colour {
	if c == White {
		return Black
	}
	return White
}

func (c Colour) String() string {
	if c == White {
		return "WHITE"
	}
	return "BLACK"
}

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Step returns the coordinate one unit along d.
func (c Coord) Step(d Direction) Coord {
	switch d {
	case Up:
		return Coord{Row: c.Row - 1, Col: c.Col}
	case Right:
		return Coord{Row: c.Row, Col: c.Col + 1}
	case Down:
		return Coord{Row: c.Row + 1, Col: c.Col}
	case Left:
		return Coord{Row: c.Row, Col: c.Col - 1}
	}
	return c
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }
