package panel

// findRegions labels 4-connected foreground components of m.
func findRegions(m *mask) []Region {
	visited := make([]bool, len(m.bits))
	regions := []Region{}

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			i := y*m.w + x
			if m.bits[i] && !visited[i] {
				regions = append(regions, floodFill(m, visited, x, y))
			}
		}
	}
	return regions
}

// floodFill walks one component and returns its bounding box and size
func floodFill(m *mask, visited []bool, startX, startY int) Region {
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	surface := 0

	stack := []int{startY*m.w + startX}
	visited[startY*m.w+startX] = true

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%m.w, i/m.w
		surface++

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		push := func(nx, ny int) {
			if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
				return
			}
			j := ny*m.w + nx
			if m.bits[j] && !visited[j] {
				visited[j] = true
				stack = append(stack, j)
			}
		}
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}

	return Region{
		Column:  minX,
		Row:     minY,
		Width:   maxX - minX + 1,
		Height:  maxY - minY + 1,
		Surface: surface,
	}
}
