package grid

// WallMap assigns the boundary walls of every coordinate of a width×height
// grid. Corner tiles get the row wall first, then the column wall.
func WallMap(width, height int) map[Coord][]WallType {
	out := make(map[Coord][]WallType, width*height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			out[Coord{Row: row, Col: col}] = wallsAt(row, col, width, height)
		}
	}
	return out
}

func wallsAt(row, col, width, height int) []WallType {
	var walls []WallType
	switch row {
	case 0:
		walls = append(walls, WallTop)
	case height - 1:
		walls = append(walls, WallBottom)
	}
	switch col {
	case 0:
		walls = append(walls, WallLeft)
	case width - 1:
		walls = append(walls, WallRight)
	}
	return walls
}
