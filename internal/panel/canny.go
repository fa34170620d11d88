package panel

import (
	"image"
	"math"
)

// plane is a single-channel float image with values in [0,1].
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

func planeFromGray(g *image.Gray) *plane {
	b := g.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+p.w]
		for x, v := range row {
			p.pix[y*p.w+x] = float64(v) / 255
		}
	}
	return p
}

// at clamps coordinates to the nearest edge pixel.
func (p *plane) at(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

// mask is a binary image; true is foreground.
type mask struct {
	w, h int
	bits []bool
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, bits: make([]bool, w*h)}
}

func (m *mask) count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// blur applies a separable gaussian with edge clamping.
func blur(src *plane, sigma float64) *plane {
	if sigma <= 0 {
		return src
	}
	k := gaussianKernel(sigma)
	r := len(k) / 2

	tmp := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			s := 0.0
			for i := -r; i <= r; i++ {
				s += k[i+r] * src.at(x+i, y)
			}
			tmp.pix[y*src.w+x] = s
		}
	}

	out := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			s := 0.0
			for i := -r; i <= r; i++ {
				s += k[i+r] * tmp.at(x, y+i)
			}
			out.pix[y*src.w+x] = s
		}
	}
	return out
}

// direction buckets for non-maximum suppression
const (
	dirHorizontal = iota // gradient along x, compare left/right
	dirDiagonal          // 45 degrees
	dirVertical          // gradient along y, compare up/down
	dirAntiDiagonal      // 135 degrees
)

func quantize(gx, gy float64) int {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return dirHorizontal
	case angle < 67.5:
		return dirDiagonal
	case angle < 112.5:
		return dirVertical
	default:
		return dirAntiDiagonal
	}
}

// canny returns thin edges of src. Both thresholds are compared against the
// Sobel gradient magnitude of the [0,1] grey values.
func canny(src *plane, low, high, sigma float64) *mask {
	g := blur(src, sigma)
	w, h := g.w, g.h

	mag := make([]float64, w*h)
	dir := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -g.at(x-1, y-1) + g.at(x+1, y-1) -
				2*g.at(x-1, y) + 2*g.at(x+1, y) -
				g.at(x-1, y+1) + g.at(x+1, y+1)
			gy := -g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)
			mag[y*w+x] = math.Hypot(gx, gy)
			dir[y*w+x] = quantize(gx, gy)
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// Non-maximum suppression. Ties are kept so both sides of a sharp step
	// survive.
	thin := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := mag[y*w+x]
			if m == 0 {
				continue
			}
			var a, b float64
			switch dir[y*w+x] {
			case dirHorizontal:
				a, b = magAt(x-1, y), magAt(x+1, y)
			case dirDiagonal:
				a, b = magAt(x-1, y-1), magAt(x+1, y+1)
			case dirVertical:
				a, b = magAt(x, y-1), magAt(x, y+1)
			default:
				a, b = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			if m >= a && m >= b {
				thin[y*w+x] = m
			}
		}
	}

	// Hysteresis: grow strong edges through weak 8-neighbours.
	out := newMask(w, h)
	stack := make([]int, 0, 1024)
	for i, m := range thin {
		if m > 0 && m >= high && !out.bits[i] {
			out.bits[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !out.bits[j] && thin[j] >= low && thin[j] > 0 {
					out.bits[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}
