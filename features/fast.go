package features

import (
	"image"
	"slices"
)

// circle lists the 16 pixels of a Bresenham circle of radius 3, clockwise from
// the top.
var circle = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// arcLength is the number of contiguous circle pixels that must all be brighter
// or all be darker than the center.
const arcLength = 9

// border keeps keypoints far enough from the edge for the descriptor patch and
// its smoothing window.
const border = patchRadius + smoothRadius + 1

// detect returns up to limit FAST corners of img, strongest first.
func detect(img *image.Gray, threshold, limit int) []Keypoint {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 2*border || h <= 2*border {
		return nil
	}

	scores := make([]int, w*h)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			scores[y*w+x] = cornerScore(img, x, y, threshold)
		}
	}

	var keypoints []Keypoint
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s > 0 && isLocalMax(scores, w, x, y) {
				keypoints = append(keypoints, Keypoint{X: x, Y: y, Score: s})
			}
		}
	}

	slices.SortStableFunc(keypoints, func(a, b Keypoint) int {
		return b.Score - a.Score
	})
	if len(keypoints) > limit {
		keypoints = keypoints[:limit]
	}
	return keypoints
}

// cornerScore returns zero when (x, y) fails the segment test. Otherwise it returns
// the summed amount by which the qualifying circle pixels exceed the threshold.
func cornerScore(img *image.Gray, x, y, threshold int) int {
	center := int(img.Pix[y*img.Stride+x])

	var diffs [16]int
	for i, p := range circle {
		diffs[i] = int(img.Pix[(y+p.Y)*img.Stride+x+p.X]) - center
	}

	score := 0
	if hasArc(diffs, func(d int) bool { return d > threshold }) {
		score = max(score, sumBeyond(diffs, threshold))
	}
	if hasArc(diffs, func(d int) bool { return d < -threshold }) {
		score = max(score, sumBeyond(negate(diffs), threshold))
	}
	return score
}

// hasArc reports whether at least arcLength contiguous circle pixels, wrapping
// around, satisfy pass.
func hasArc(diffs [16]int, pass func(int) bool) bool {
	run := 0
	for i := 0; i < len(diffs)+arcLength-1; i++ {
		if pass(diffs[i%len(diffs)]) {
			run++
			if run >= arcLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func sumBeyond(diffs [16]int, threshold int) int {
	sum := 0
	for _, d := range diffs {
		if d > threshold {
			sum += d - threshold
		}
	}
	return sum
}

func negate(diffs [16]int) [16]int {
	for i := range diffs {
		diffs[i] = -diffs[i]
	}
	return diffs
}

// isLocalMax reports whether (x, y) wins its 3x3 neighbourhood. Equal scores are
// resolved in favour of the pixel that comes first in raster order.
func isLocalMax(scores []int, w, x, y int) bool {
	s := scores[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			if n > s {
				return false
			}
			if n == s && (dy < 0 || (dy == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}
