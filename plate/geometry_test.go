package plate

import (
	"image"
	"math"
	"testing"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/nvr-ai/go-lpr/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// TestTiltAngle covers both minAreaRect angle conventions.
func TestTiltAngle(t *testing.T) {
	tests := []struct {
		name     string
		w, h, a  float64
		expected float64
	}{
		{name: "Wide, no rotation", w: 100, h: 20, a: 0, expected: 0},
		{name: "Tall at -90 is horizontal", w: 20, h: 100, a: -90, expected: 0},
		{name: "Tall at 90 is horizontal", w: 20, h: 100, a: 90, expected: 0},
		{name: "Wide at -10", w: 100, h: 20, a: -10, expected: 10},
		{name: "Tall at -80", w: 20, h: 100, a: -80, expected: 10},
		{name: "Wide at 10", w: 100, h: 20, a: 10, expected: 10},
		{name: "Tall at 80", w: 20, h: 100, a: 80, expected: 10},
		{name: "Steep", w: 100, h: 20, a: -45, expected: 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TiltAngle(tt.w, tt.h, tt.a), 1e-9)
		})
	}
}

func contourOf(r image.Rectangle) gocv.PointVector {
	return gocv.NewPointVectorFromPoints([]image.Point{
		r.Min, {X: r.Max.X, Y: r.Min.Y}, r.Max, {X: r.Min.X, Y: r.Max.Y},
	})
}

// TestGeometryFilter_Check verifies the area and pre-ratio bands on axis-aligned contours.
func TestGeometryFilter_Check(t *testing.T) {
	g := NewGeometryFilter(DefaultConfig())

	tests := []struct {
		name     string
		box      image.Rectangle
		expected bool
	}{
		{name: "Plate", box: image.Rect(0, 0, 200, 50), expected: true},
		{name: "Too small", box: image.Rect(0, 0, 100, 25), expected: false},
		{name: "Too large", box: image.Rect(0, 0, 500, 100), expected: false},
		{name: "Too square", box: image.Rect(0, 0, 100, 80), expected: false},
		{name: "Too elongated", box: image.Rect(0, 0, 400, 20), expected: false},
		{name: "Vertical plate shape", box: image.Rect(0, 0, 50, 200), expected: false},
		{name: "Wide for the cleaner", box: image.Rect(0, 0, 126, 45), expected: true},
		{name: "Long for the cleaner", box: image.Rect(0, 0, 182, 28), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := contourOf(tt.box)
			defer c.Close()
			_, ok := g.Check(c)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

// TestGeometryFilter_CheckRotated uses parallelograms with integer corners but irrational
// side lengths, so the rotated rectangle must be measured in floating point.
func TestGeometryFilter_CheckRotated(t *testing.T) {
	g := NewGeometryFilter(DefaultConfig())

	tests := []struct {
		name     string
		corners  []image.Point
		tilt     float64
		expected bool
	}{
		{
			// 116.50 x 38.83, area 4524. Truncated sides would give 4408.
			name:     "Area just above the minimum",
			corners:  []image.Point{{X: 50, Y: 50}, {X: 164, Y: 74}, {X: 156, Y: 112}, {X: 42, Y: 88}},
			tilt:     math.Atan2(24, 114) * 180 / math.Pi,
			expected: true,
		},
		{
			// 136.70 x 34.18, area 4672, ratio 4, tilted 20.6 degrees.
			name:     "Tilted past the limit",
			corners:  []image.Point{{X: 60, Y: 20}, {X: 188, Y: 68}, {X: 176, Y: 100}, {X: 48, Y: 52}},
			tilt:     math.Atan2(48, 128) * 180 / math.Pi,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := gocv.NewPointVectorFromPoints(tt.corners)
			defer c.Close()
			angle, ok := g.Check(c)
			assert.Equal(t, tt.expected, ok)
			assert.InDelta(t, tt.tilt, math.Abs(angle), 0.5)
		})
	}

	// The untilted twin of the rejected contour is a plate.
	c := contourOf(image.Rect(0, 0, 136, 34))
	defer c.Close()
	_, ok := g.Check(c)
	assert.True(t, ok)
}

func TestPreprocessor_Process(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()
	before := images.ComputeMatChecksum(frame)

	p := NewPreprocessor(DefaultConfig())
	defer p.Close()

	mask, err := p.Process(frame)
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, frame.Rows(), mask.Rows())
	assert.Equal(t, frame.Cols(), mask.Cols())
	assert.Equal(t, 1, mask.Channels())
	assert.Equal(t, before, images.ComputeMatChecksum(frame))

	data, err := mask.DataPtrUint8()
	require.NoError(t, err)
	for _, v := range data {
		if v != 0 && v != 255 {
			t.Fatalf("mask is not binary: found %d", v)
		}
	}
}

func TestGeometryFilter_Candidates(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	cfg := DefaultConfig()
	p := NewPreprocessor(cfg)
	defer p.Close()
	mask, err := p.Process(frame)
	require.NoError(t, err)
	defer mask.Close()

	cands := NewGeometryFilter(cfg).Candidates(frame, mask)
	defer CloseCandidates(cands)

	require.Len(t, cands, 1)
	c := cands[0]
	plate := fixture.PlateBox(image.Pt(200, 200), 8)
	assert.True(t, c.Box.In(images.Bounds(frame.Cols(), frame.Rows())))
	assert.False(t, c.Box.Intersect(plate).Empty())
	assert.Equal(t, c.Box.Dx(), c.Region.Cols())
	assert.Equal(t, c.Box.Dy(), c.Region.Rows())
	assert.LessOrEqual(t, c.Angle, cfg.MaxTilt)
}

func TestCleaner_Clean(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	cfg := DefaultConfig()
	cleaner := NewCleaner(cfg)

	// A generous crop around the plate, like a candidate from a blurred mask.
	box := image.Rect(196, 196, 378, 250)
	cand := Candidate{Box: box, Region: images.Crop(frame, box)}
	defer cand.Region.Close()

	cleaned, ok, err := cleaner.Clean(cand)
	require.NoError(t, err)
	require.True(t, ok)

	regionBounds := images.Bounds(cand.Region.Cols(), cand.Region.Rows())
	assert.True(t, cleaned.Box.In(regionBounds))
	assert.True(t, cfg.Area.Contains(float64(images.RectArea(cleaned.Box))))
	assert.True(t, cfg.Ratio.Contains(images.RectRatio(cleaned.Box)))

	// The refined box is the white plate body.
	abs := cleaned.Box.Add(box.Min)
	assert.InDelta(t, 200, abs.Min.X, 2)
	assert.InDelta(t, 200, abs.Min.Y, 2)
	assert.InDelta(t, fixture.PlateHeight, abs.Dy(), 2)
}

func TestCleaner_Rejects(t *testing.T) {
	cleaner := NewCleaner(DefaultConfig())

	square := fixture.Frame(100, 100, 255)
	defer square.Close()
	_, ok, err := cleaner.Clean(Candidate{Box: image.Rect(0, 0, 100, 100), Region: square})
	require.NoError(t, err)
	assert.False(t, ok, "a square region has no plate ratio")

	_, ok, err = cleaner.Clean(Candidate{Region: gocv.NewMat()})
	require.NoError(t, err)
	assert.False(t, ok)
}

// plateRegion returns a candidate region holding a single white w x h body with a 4px
// black margin.
func plateRegion(w, h int) Candidate {
	region := fixture.Frame(w+8, h+8, 0)
	gocv.Rectangle(&region, image.Rect(4, 4, 4+w, 4+h), fixture.White, -1)
	return Candidate{Box: image.Rect(0, 0, w+8, h+8), Region: region}
}

// TestCleaner_RatioBands checks shapes that pass the pre-check ratio band but fall outside
// the refined one.
func TestCleaner_RatioBands(t *testing.T) {
	cfg := DefaultConfig()
	g := NewGeometryFilter(cfg)
	cleaner := NewCleaner(cfg)

	tests := []struct {
		name     string
		w, h     int
		expected bool
	}{
		{name: "Plate", w: 160, h: 40, expected: true},
		{name: "Ratio 2.8", w: 126, h: 45, expected: false},
		{name: "Ratio 6.5", w: 182, h: 28, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := contourOf(image.Rect(0, 0, tt.w, tt.h))
			defer c.Close()
			_, ok := g.Check(c)
			require.True(t, ok, "the pre-check accepts every case")

			cand := plateRegion(tt.w, tt.h)
			defer cand.Region.Close()

			cleaned, ok, err := cleaner.Clean(cand)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			if ok {
				assert.InDelta(t, tt.w, cleaned.Box.Dx(), 2)
				assert.InDelta(t, tt.h, cleaned.Box.Dy(), 2)
			}
			assert.Equal(t, tt.expected, cleaner.ratioCheck(image.Rect(0, 0, tt.w, tt.h)))
		})
	}
}

func TestCleaner_ThresholdError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanBlockSize = 4

	cand := plateRegion(160, 40)
	defer cand.Region.Close()

	_, ok, err := NewCleaner(cfg).Clean(cand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adaptive threshold")
	assert.False(t, ok)
}
