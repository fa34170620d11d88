package panel

// closeMask performs morphological closing with a square kernel. Each
// iteration is one dilation followed by one erosion. The mask is padded
// with background wide enough that every window stays on the canvas, so
// closing treats all four borders alike: a region near column 0 keeps its
// column instead of being pulled onto the edge.
func closeMask(m *mask, kernelSize, iterations int) *mask {
	half := kernelSize / 2
	if half < 1 || iterations < 1 {
		return m
	}
	margin := half * (iterations + 1)
	result := pad(m, margin)
	for iter := 0; iter < iterations; iter++ {
		result = morph(result, half, true)
		result = morph(result, half, false)
	}
	return unpad(result, margin, m.w, m.h)
}

func pad(m *mask, margin int) *mask {
	out := newMask(m.w+2*margin, m.h+2*margin)
	for y := 0; y < m.h; y++ {
		copy(out.bits[(y+margin)*out.w+margin:], m.bits[y*m.w:(y+1)*m.w])
	}
	return out
}

func unpad(m *mask, margin, w, h int) *mask {
	out := newMask(w, h)
	for y := 0; y < h; y++ {
		start := (y+margin)*m.w + margin
		copy(out.bits[y*w:(y+1)*w], m.bits[start:start+w])
	}
	return out
}

// morph is a separable square max (dilate) or min (erode) filter.
func morph(src *mask, half int, dilate bool) *mask {
	w, h := src.w, src.h
	tmp := newMask(w, h)
	for y := 0; y < h; y++ {
		row := src.bits[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			tmp.bits[y*w+x] = window(row, x, half, 1, w, dilate)
		}
	}

	out := newMask(w, h)
	for x := 0; x < w; x++ {
		col := tmp.bits[x:]
		for y := 0; y < h; y++ {
			out.bits[y*w+x] = window(col, y, half, w, h, dilate)
		}
	}
	return out
}

// window scans positions center-half..center+half of a strided line of n
// elements. For dilation it reports whether any is set; for erosion
// whether all are. Positions off the line count as background.
func window(line []bool, center, half, stride, n int, dilate bool) bool {
	lo, hi := center-half, center+half
	if !dilate && (lo < 0 || hi > n-1) {
		return false
	}
	lo = max(lo, 0)
	hi = min(hi, n-1)
	for i := lo; i <= hi; i++ {
		v := line[i*stride]
		if dilate && v {
			return true
		}
		if !dilate && !v {
			return false
		}
	}
	return !dilate
}

// fillHoles sets every background pixel that cannot reach the border
// through 4-connected background, turning a closed outline into a solid
// shape.
func fillHoles(m *mask) *mask {
	w, h := m.w, m.h
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !m.bits[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			seed(x-1, y)
		}
		if x < w-1 {
			seed(x+1, y)
		}
		if y > 0 {
			seed(x, y-1)
		}
		if y < h-1 {
			seed(x, y+1)
		}
	}

	out := newMask(w, h)
	for i := range out.bits {
		out.bits[i] = m.bits[i] || !outside[i]
	}
	return out
}
