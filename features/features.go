// Package features extracts corner keypoints and binary descriptors from images.
//
// Keypoints come from the FAST-9 segment test with 3x3 non-maximum suppression.
// Each keypoint is described by a 256-bit BRIEF descriptor: intensity comparisons
// between fixed pairs of points in a smoothed patch around the keypoint.
package features

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math/bits"
	"os"

	"github.com/nomis52/featurebatch/enumerate"
)

const (
	// DefaultMaxKeypoints is the number of keypoints kept per image.
	DefaultMaxKeypoints = 500
	// DefaultThreshold is the FAST intensity threshold.
	DefaultThreshold = 20
)

// Keypoint is a detected corner.
type Keypoint struct {
	X     int
	Y     int
	Score int
}

// Descriptor is a 256-bit BRIEF descriptor.
type Descriptor [32]byte

// Distance returns the Hamming distance between two descriptors.
func Distance(a, b Descriptor) int {
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// Set holds the keypoints of an image and their descriptors, index aligned.
type Set struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of keypoints.
func (s Set) Len() int { return len(s.Keypoints) }

// Options controls detection.
type Options struct {
	// MaxKeypoints caps the keypoints per image; the strongest are kept.
	MaxKeypoints int
	// Threshold is the minimum intensity difference for a FAST circle pixel to
	// count as brighter or darker than the center. Valid values are 1-255.
	Threshold int
}

// Extractor computes a Set for each image file.
type Extractor struct {
	opts    Options
	pattern *pattern
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger for the extractor
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger.With("component", "features")
	}
}

// NewExtractor creates an Extractor. Zero fields in opts take their defaults.
func NewExtractor(opts Options, options ...Option) *Extractor {
	if opts.MaxKeypoints <= 0 {
		opts.MaxKeypoints = DefaultMaxKeypoints
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	e := &Extractor{
		opts:    opts,
		pattern: briefPattern(),
		logger:  slog.Default().With("component", "features"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Extract decodes the image at item.Path and computes its features.
func (e *Extractor) Extract(ctx context.Context, item enumerate.Item) (Set, error) {
	if err := ctx.Err(); err != nil {
		return Set{}, err
	}

	f, err := os.Open(item.Path)
	if err != nil {
		return Set{}, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return Set{}, fmt.Errorf("decoding image: %w", err)
	}

	set := e.Compute(img)
	e.logger.Debug("extracted features",
		"item", item.Index,
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"keypoints", set.Len(),
	)
	return set, nil
}

// Compute detects keypoints in img and describes them.
func (e *Extractor) Compute(img image.Image) Set {
	gray := toGray(img)
	keypoints := detect(gray, e.opts.Threshold, e.opts.MaxKeypoints)

	smoothed := newIntegral(gray)
	set := Set{
		Keypoints:   keypoints,
		Descriptors: make([]Descriptor, len(keypoints)),
	}
	for i, kp := range keypoints {
		set.Descriptors[i] = e.pattern.describe(smoothed, kp.X, kp.Y)
	}
	return set
}

// toGray converts img to an 8-bit grayscale image with its origin at (0, 0).
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
