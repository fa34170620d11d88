package panel

import "math"

// enhanceContrast rewrites p in place. Unknown methods fall through to
// histogram equalization.
func enhanceContrast(p *plane, method string, strength, gamma float64) {
	switch method {
	case ContrastStretch:
		stretch(p, strength)
	case ContrastGamma:
		gammaCorrect(p, gamma)
	default:
		equalize(p)
	}
}

func stretch(p *plane, strength float64) {
	lo, hi := 1.0, 0.0
	for _, v := range p.pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span <= 0 {
		return
	}
	for i, v := range p.pix {
		p.pix[i] = clamp01((v - lo) / span * strength)
	}
}

func gammaCorrect(p *plane, gamma float64) {
	inv := 1 / gamma
	for i, v := range p.pix {
		p.pix[i] = math.Pow(v, inv)
	}
}

func equalize(p *plane) {
	var hist [256]int
	for _, v := range p.pix {
		hist[level(v)]++
	}
	var cdf [256]int
	sum := 0
	for i, n := range hist {
		sum += n
		cdf[i] = sum
	}
	total := float64(len(p.pix))
	if total == 0 {
		return
	}
	for i, v := range p.pix {
		p.pix[i] = float64(cdf[level(v)]) / total
	}
}

func level(v float64) int {
	return int(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
