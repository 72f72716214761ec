package grid

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestWallMap_CornerEdgeCounts(t *testing.T) {
	for w := 2; w <= 9; w++ {
		for h := 2; h <= 9; h++ {
			corners, edges, inner := 0, 0, 0
			for c, walls := range WallMap(w, h) {
				switch len(walls) {
				case 2:
					corners++
					if Mod4(int(walls[0])-int(walls[1]))%2 == 0 {
						t.Fatalf("%dx%d corner %v has parallel walls %v", w, h, c, walls)
					}
				case 1:
					edges++
				case 0:
					inner++
				default:
					t.Fatalf("%dx%d tile %v has %d walls", w, h, c, len(walls))
				}
			}
			if corners != 4 {
				t.Fatalf("%dx%d: corners=%d want 4", w, h, corners)
			}
			if want := 2*(w+h) - 8; edges != want {
				t.Fatalf("%dx%d: edges=%d want %d", w, h, edges, want)
			}
			if want := w*h - 4 - (2*(w+h) - 8); inner != want {
				t.Fatalf("%dx%d: inner=%d want %d", w, h, inner, want)
			}
		}
	}
}

func TestWallMap_CornerOrder(t *testing.T) {
	m := WallMap(5, 4)
	cases := map[Coord][]WallType{
		{Row: 0, Col: 0}: {WallTop, WallLeft},
		{Row: 0, Col: 4}: {WallTop, WallRight},
		{Row: 3, Col: 0}: {WallBottom, WallLeft},
		{Row: 3, Col: 4}: {WallBottom, WallRight},
		{Row: 0, Col: 2}: {WallTop},
		{Row: 2, Col: 4}: {WallRight},
		{Row: 1, Col: 1}: nil,
	}
	for c, want := range cases {
		got := m[c]
		if len(got) != len(want) {
			t.Fatalf("%v: walls=%v want %v", c, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%v: walls=%v want %v", c, got, want)
			}
		}
	}
}

func TestNew_WallsIndependentOfRatio(t *testing.T) {
	for _, ratio := range []float64{0, 0.3, 0.7, 1} {
		g, err := New(Params{Width: 6, Height: 4, WhiteRatio: ratio}, rand.New(rand.NewPCG(1, 2)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ref := WallMap(6, 4)
		for row := 0; row < 4; row++ {
			for col := 0; col < 6; col++ {
				c := Coord{Row: row, Col: col}
				if got := g.At(c).NumWalls(); got != len(ref[c]) {
					t.Fatalf("ratio=%v %v: walls=%d want %d", ratio, c, got, len(ref[c]))
				}
				if g.At(c).Occupied() {
					t.Fatalf("new grid tile %v occupied", c)
				}
			}
		}
	}
}

func TestNew_NonClusteredRatio(t *testing.T) {
	g, err := New(Params{Width: 15, Height: 15, WhiteRatio: 0.7}, rand.New(rand.NewPCG(42, 7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r := g.WhiteRatio(); r < 0.6 || r > 0.8 {
		t.Fatalf("white ratio=%v want 0.7±0.1", r)
	}
}

func TestNew_ClusteredHelpful(t *testing.T) {
	g, err := New(Params{Width: 5, Height: 5, WhiteRatio: 0.5, Clustered: true, Helpful: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			want := Black
			if col < 2 || (col == 2 && row < 2) {
				want = White
			}
			if got := g.At(Coord{Row: row, Col: col}).Colour(); got != want {
				t.Fatalf("(%d,%d): colour=%v want %v", row, col, got, want)
			}
		}
	}
}

func TestNew_ClusteredNotHelpful(t *testing.T) {
	g, err := New(Params{Width: 5, Height: 5, WhiteRatio: 0.5, Clustered: true, Helpful: false}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			want := White
			if col < 2 || (col == 2 && row < 2) {
				want = Black
			}
			if got := g.At(Coord{Row: row, Col: col}).Colour(); got != want {
				t.Fatalf("(%d,%d): colour=%v want %v", row, col, got, want)
			}
		}
	}
}

func TestNew_RejectsBadParams(t *testing.T) {
	bad := []Params{
		{Width: 1, Height: 5, WhiteRatio: 0.5},
		{Width: 5, Height: 0, WhiteRatio: 0.5},
		{Width: 5, Height: 5, WhiteRatio: 1.5},
		{Width: 5, Height: 5, WhiteRatio: -0.1},
	}
	for _, p := range bad {
		if _, err := New(p, rand.New(rand.NewPCG(1, 1))); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("New(%+v): err=%v want ErrInvalidParams", p, err)
		}
	}
	if _, err := New(Params{Width: 3, Height: 3, WhiteRatio: 0.5}, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("non-clustered without rng: err=%v", err)
	}
}

func TestTurnRoundTrip(t *testing.T) {
	for d := Up; d <= Left; d++ {
		r, l := d, d
		for i := 0; i < 4; i++ {
			r = r.Turn(TurnRight)
			l = l.Turn(TurnLeft)
		}
		if r != d || l != d {
			t.Fatalf("four turns from %v: right=%v left=%v", d, r, l)
		}
	}
	if got := Up.Turn(TurnLeft); got != Left {
		t.Fatalf("UP+LEFT=%v want LEFT", got)
	}
}

func TestNeighbourhood_ClampsAndOrders(t *testing.T) {
	g, _ := New(Params{Width: 4, Height: 3, Clustered: true, Helpful: true}, nil)
	got := g.Neighbourhood(Coord{Row: 0, Col: 0}, 1)
	want := []Coord{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if len(got) != len(want) {
		t.Fatalf("neighbourhood=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("neighbourhood=%v want %v", got, want)
		}
	}
	if n := len(g.Neighbourhood(Coord{Row: 1, Col: 1}, 10)); n != 12 {
		t.Fatalf("oversized radius covers %d tiles, want 12", n)
	}
}

func TestTryOccupyAndRestore(t *testing.T) {
	g, _ := New(Params{Width: 3, Height: 3, WhiteRatio: 1, Clustered: true, Helpful: true}, nil)
	c := Coord{Row: 1, Col: 2}
	if !g.TryOccupy(c, 4) {
		t.Fatalf("first occupy failed")
	}
	if g.TryOccupy(c, 5) {
		t.Fatalf("second occupy should fail")
	}
	g.Vacate(c, 5)
	if g.At(c).Occupant() != 4 {
		t.Fatalf("vacate by non-owner cleared tile")
	}
	g.Vacate(c, 4)
	if g.At(c).Occupied() {
		t.Fatalf("vacate by owner left tile occupied")
	}
	if g.TryOccupy(Coord{Row: 3, Col: 0}, 1) {
		t.Fatalf("out of bounds occupy succeeded")
	}

	r, err := Restore(3, 3, g.Colours())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if r.WhiteRatio() != 1 {
		t.Fatalf("restored white ratio=%v", r.WhiteRatio())
	}
}
