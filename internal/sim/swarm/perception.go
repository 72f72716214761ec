package swarm

import "tiledswarm.ai/internal/sim/grid"

type ObjectType int

const (
	ObjectNone ObjectType = iota
	ObjectWall
	ObjectCorner
	ObjectAgent
)

type RelativeMotion int

const (
	Approaching RelativeMotion = iota
	Escaping
)

type RelativePosition int

const (
	PosFront RelativePosition = iota
	PosLeft
	PosBehind
	PosRight
)

func (o ObjectType) String() string {
	switch o {
	case ObjectNone:
		return "NONE"
	case ObjectWall:
		return "WALL"
	case ObjectCorner:
		return "CORNER"
	case ObjectAgent:
		return "AGENT"
	}
	return "UNKNOWN"
}

// Perception is the relative-object observation of one agent.
type Perception struct {
	Object   ObjectType
	Motion   RelativeMotion
	Position RelativePosition
}

// Vector is the three-field navigation observation.
func (p Perception) Vector() []int {
	return []int{int(p.Object), int(p.Motion), int(p.Position)}
}

// Pair is the reduced (object, position) observation.
func (p Perception) Pair() []int {
	return []int{int(p.Object), int(p.Position)}
}

// RelativeBearing maps a wall to its position relative to heading.
func RelativeBearing(heading grid.Direction, wall grid.WallType) RelativePosition {
	return RelativePosition(grid.Mod4(int(heading) - int(wall)))
}

// Perceive builds the observation for an agent standing at c facing heading.
// An agent on the tile ahead takes precedence over any wall.
func Perceive(g *grid.Grid, c grid.Coord, heading grid.Direction) Perception {
	next := c.Step(heading)
	if t := g.At(next); t != nil && t.Occupied() {
		return Perception{Object: ObjectAgent, Motion: Approaching, Position: PosFront}
	}

	var walls []grid.WallType
	if cur := g.At(c); cur != nil && cur.NumWalls() > 0 {
		walls = cur.Walls()
	} else if t := g.At(next); t != nil {
		walls = t.Walls()
	}
	return fromWalls(walls, heading)
}

func fromWalls(walls []grid.WallType, heading grid.Direction) Perception {
	motion := Escaping
	for _, w := range walls {
		if int(w) == int(heading) {
			motion = Approaching
			break
		}
	}

	switch len(walls) {
	case 0:
		return Perception{Object: ObjectNone, Motion: Approaching, Position: PosFront}
	case 1:
		return Perception{Object: ObjectWall, Motion: motion, Position: RelativeBearing(heading, walls[0])}
	}
	// Corner: report the wall to the side, never the one ahead or behind.
	for _, w := range walls {
		if off := grid.Mod4(int(heading) - int(w)); off == 1 || off == 3 {
			return Perception{Object: ObjectCorner, Motion: motion, Position: RelativePosition(off)}
		}
	}
	return Perception{Object: ObjectCorner, Motion: motion, Position: PosFront}
}

// Perceive builds the agent's observation from its current cell and heading.
func (b *Body) Perceive(g *grid.Grid) Perception {
	return Perceive(g, b.cell, b.heading)
}

// FrontBlocked reports whether a forward step would fail right now.
func (b *Body) FrontBlocked(g *grid.Grid) bool {
	t := g.At(b.cell.Step(b.heading))
	return t == nil || t.Occupied()
}
