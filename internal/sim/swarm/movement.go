package swarm

import (
	"errors"
	"fmt"
	"sort"

	"tiledswarm.ai/internal/sim/grid"
)

var (
	ErrAlreadyPlaced = errors.New("agent already placed")
	ErrOutOfBounds   = errors.New("cell out of bounds")
	ErrCellOccupied  = errors.New("cell occupied")
	ErrUnknownAction = errors.New("unknown action code")
)

// Action is a navigation action code consumed from a controller.
type Action int

const (
	ActionForward   Action = 0
	ActionTurnLeft  Action = 1
	ActionTurnRight Action = 2
)

func ParseAction(code int) (Action, error) {
	switch a := Action(code); a {
	case ActionForward, ActionTurnLeft, ActionTurnRight:
		return a, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownAction, code)
}

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "FORWARD"
	case ActionTurnLeft:
		return "TURN_LEFT"
	case ActionTurnRight:
		return "TURN_RIGHT"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

type colourObserver interface {
	observe(c grid.Colour)
}

// Body is the movement and occupancy state shared by every agent kind.
type Body struct {
	id      grid.AgentID
	cell    grid.Coord
	placed  bool
	heading grid.Direction
	visited map[grid.Coord]struct{}

	// sensor sees the colour of each newly occupied tile; nil for agents that never sense.
	sensor colourObserver
}

func newBody(id grid.AgentID, sensor colourObserver) Body {
	return Body{id: id, visited: map[grid.Coord]struct{}{}, sensor: sensor}
}

func (b *Body) ID() grid.AgentID            { return b.id }
func (b *Body) Placed() bool                { return b.placed }
func (b *Body) Heading() grid.Direction     { return b.heading }
func (b *Body) SetHeading(d grid.Direction) { b.heading = grid.Direction(grid.Mod4(int(d))) }

// CurrentCell returns the occupied coordinate; ok is false while unplaced.
func (b *Body) CurrentCell() (c grid.Coord, ok bool) { return b.cell, b.placed }

// Place binds an unplaced agent to its starting tile.
func (b *Body) Place(g *grid.Grid, start grid.Coord, heading grid.Direction) error {
	if b.placed {
		return fmt.Errorf("%w: agent %d at %v", ErrAlreadyPlaced, b.id, b.cell)
	}
	if !g.InBounds(start) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, start)
	}
	b.SetHeading(heading)
	if !b.OccupyCell(g, start) {
		return fmt.Errorf("%w: %v", ErrCellOccupied, start)
	}
	return nil
}

// OccupyCell claims c for the agent. It fails without mutation if another
// agent holds c; re-occupying the agent's own tile is a no-op.
func (b *Body) OccupyCell(g *grid.Grid, c grid.Coord) bool {
	t := g.At(c)
	if t == nil {
		return false
	}
	if b.placed && b.cell == c && t.Occupant() == b.id {
		return true
	}
	if !g.TryOccupy(c, b.id) {
		return false
	}
	b.cell = c
	b.placed = true
	if b.sensor != nil {
		b.sensor.observe(t.Colour())
	}
	return true
}

// LeaveCell releases c and records it as visited.
func (b *Body) LeaveCell(g *grid.Grid, c grid.Coord) {
	g.Vacate(c, b.id)
	b.visited[c] = struct{}{}
}

// ForwardStep moves one tile along the heading. When the target is out of
// bounds or occupied the agent stays and its current cell is marked visited.
func (b *Body) ForwardStep(g *grid.Grid) bool {
	if !b.placed {
		return false
	}
	old := b.cell
	target := old.Step(b.heading)
	if g.InBounds(target) && b.OccupyCell(g, target) {
		b.LeaveCell(g, old)
		return true
	}
	b.visited[old] = struct{}{}
	return false
}

func (b *Body) Turn(t grid.Turn) { b.heading = b.heading.Turn(t) }

// Apply performs one navigation action. It reports whether the agent moved.
func (b *Body) Apply(g *grid.Grid, a Action) bool {
	switch a {
	case ActionForward:
		return b.ForwardStep(g)
	case ActionTurnLeft:
		b.Turn(grid.TurnLeft)
	case ActionTurnRight:
		b.Turn(grid.TurnRight)
	}
	return false
}

func (b *Body) Visited(c grid.Coord) bool {
	_, ok := b.visited[c]
	return ok
}

func (b *Body) NumVisited() int { return len(b.visited) }

// VisitedCells returns the visited set sorted row-major.
func (b *Body) VisitedCells() []grid.Coord {
	out := make([]grid.Coord, 0, len(b.visited))
	for c := range b.visited {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// Navigation reward scale for exploration.
const (
	RewardNewCell     = 2.0
	RewardVisitedCell = -1.0
)

// NavigationReward scores the agent's current cell against its visited set.
func (b *Body) NavigationReward() float64 {
	if b.Visited(b.cell) {
		return RewardVisitedCell
	}
	return RewardNewCell
}

func (b *Body) restore(g *grid.Grid, cell grid.Coord, placed bool, heading grid.Direction, visited []grid.Coord) error {
	b.heading = heading
	b.visited = make(map[grid.Coord]struct{}, len(visited))
	for _, c := range visited {
		b.visited[c] = struct{}{}
	}
	if !placed {
		return nil
	}
	if !g.TryOccupy(cell, b.id) {
		return fmt.Errorf("%w: restore agent %d at %v", ErrCellOccupied, b.id, cell)
	}
	b.cell = cell
	b.placed = true
	return nil
}
