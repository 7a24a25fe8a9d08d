package features

import (
	"image"
	"math"
	"math/rand/v2"
)

const (
	// patchRadius bounds the sampling offsets around a keypoint.
	patchRadius = 15
	// smoothRadius is the half-width of the box filter applied before sampling.
	smoothRadius = 2
	// descriptorBits is the descriptor length.
	descriptorBits = 256

	patternSeed = 0x62726965663235
)

// pattern holds the point pairs compared by each descriptor bit.
type pattern struct {
	pairs [descriptorBits][2]image.Point
}

// briefPattern draws the sampling pairs from an isotropic Gaussian with sigma equal
// to a fifth of the patch size. The seed is fixed so descriptors are comparable
// across runs and processes.
func briefPattern() *pattern {
	rng := rand.New(rand.NewPCG(patternSeed, patternSeed>>1))
	sigma := float64(2*patchRadius+1) / 5

	sample := func() image.Point {
		coord := func() int {
			v := int(math.Round(rng.NormFloat64() * sigma))
			return min(max(v, -patchRadius), patchRadius)
		}
		return image.Point{X: coord(), Y: coord()}
	}

	p := &pattern{}
	for i := range p.pairs {
		p.pairs[i] = [2]image.Point{sample(), sample()}
	}
	return p
}

func (p *pattern) describe(ii *integral, x, y int) Descriptor {
	var d Descriptor
	for i, pair := range p.pairs {
		a := ii.box(x+pair[0].X, y+pair[0].Y, smoothRadius)
		b := ii.box(x+pair[1].X, y+pair[1].Y, smoothRadius)
		if a < b {
			d[i/8] |= 1 << (i % 8)
		}
	}
	return d
}

// integral is a summed-area table over a grayscale image.
type integral struct {
	w, h int
	sums []uint32 // (w+1)*(h+1), row and column zero are padding
}

func newIntegral(img *image.Gray) *integral {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	ii := &integral{w: w, h: h, sums: make([]uint32, (w+1)*(h+1))}
	stride := w + 1
	for y := 0; y < h; y++ {
		var row uint32
		for x := 0; x < w; x++ {
			row += uint32(img.Pix[y*img.Stride+x])
			ii.sums[(y+1)*stride+x+1] = ii.sums[y*stride+x+1] + row
		}
	}
	return ii
}

// box returns the pixel sum of the square of half-width r centred on (x, y).
// Callers keep the square inside the image.
func (ii *integral) box(x, y, r int) uint32 {
	stride := ii.w + 1
	x0, y0 := x-r, y-r
	x1, y1 := x+r+1, y+r+1
	return ii.sums[y1*stride+x1] - ii.sums[y0*stride+x1] - ii.sums[y1*stride+x0] + ii.sums[y0*stride+x0]
}
