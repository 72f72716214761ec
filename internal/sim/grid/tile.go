package grid

import "fmt"

// AgentID indexes an agent arena. Tiles store it instead of a reference.
type AgentID int

const NoAgent AgentID = -1

type Tile struct {
	coord    Coord
	colour   Colour
	walls    []WallType
	occupant AgentID
}

func (t *Tile) Coord() Coord      { return t.coord }
func (t *Tile) Colour() Colour    { return t.colour }
func (t *Tile) NumWalls() int     { return len(t.walls) }
func (t *Tile) Occupied() bool    { return t.occupant != NoAgent }
func (t *Tile) Occupant() AgentID { return t.occupant }

// Walls returns a copy of the tile's wall set.
func (t *Tile) Walls() []WallType {
	if len(t.walls) == 0 {
		return nil
	}
	out := make([]WallType, len(t.walls))
	copy(out, t.walls)
	return out
}

// Grid is a row-major tile arena.
type Grid struct {
	width  int
	height int
	tiles  []Tile
}

func newGrid(width, height int, colourAt func(row, col int) Colour) *Grid {
	g := &Grid{width: width, height: height, tiles: make([]Tile, width*height)}
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			g.tiles[row*width+col] = Tile{
				coord:    Coord{Row: row, Col: col},
				colour:   colourAt(row, col),
				walls:    wallsAt(row, col, width, height),
				occupant: NoAgent,
			}
		}
	}
	return g
}

// Restore rebuilds a grid from row-major colours, all tiles empty.
func Restore(width, height int, colours []Colour) (*Grid, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: dims %dx%d", ErrInvalidParams, width, height)
	}
	if len(colours) != width*height {
		return nil, fmt.Errorf("%w: %d colours for %dx%d", ErrInvalidParams, len(colours), width, height)
	}
	return newGrid(width, height, func(row, col int) Colour { return colours[row*width+col] }), nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Size() int   { return g.width * g.height }

func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.height && c.Col >= 0 && c.Col < g.width
}

// At returns the tile at c, or nil when c is out of bounds.
func (g *Grid) At(c Coord) *Tile {
	if !g.InBounds(c) {
		return nil
	}
	return &g.tiles[c.Row*g.width+c.Col]
}

// TryOccupy sets the occupant of c to id if the tile is empty.
func (g *Grid) TryOccupy(c Coord, id AgentID) bool {
	t := g.At(c)
	if t == nil || t.occupant != NoAgent {
		return false
	}
	t.occupant = id
	return true
}

// Vacate clears c if it is held by id.
func (g *Grid) Vacate(c Coord, id AgentID) {
	t := g.At(c)
	if t != nil && t.occupant == id {
		t.occupant = NoAgent
	}
}

// Colours returns the row-major colour layout.
func (g *Grid) Colours() []Colour {
	out := make([]Colour, len(g.tiles))
	for i := range g.tiles {
		out[i] = g.tiles[i].colour
	}
	return out
}

func (g *Grid) WhiteRatio() float64 {
	if len(g.tiles) == 0 {
		return 0
	}
	white := 0
	for i := range g.tiles {
		if g.tiles[i].colour == White {
			white++
		}
	}
	return float64(white) / float64(len(g.tiles))
}

// Neighbourhood returns the in-bounds coordinates of the square of the given
// radius around c, row-major. A negative radius is treated as zero.
func (g *Grid) Neighbourhood(c Coord, radius int) []Coord {
	if radius < 0 {
		radius = 0
	}
	r0, r1 := max(0, c.Row-radius), min(g.height-1, c.Row+radius)
	c0, c1 := max(0, c.Col-radius), min(g.width-1, c.Col+radius)
	if r0 > r1 || c0 > c1 {
		return nil
	}
	out := make([]Coord, 0, (r1-r0+1)*(c1-c0+1))
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			out = append(out, Coord{Row: row, Col: col})
		}
	}
	return out
}
