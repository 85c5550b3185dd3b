package plate

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/nvr-ai/go-lpr/internal/fixture"
	"github.com/nvr-ai/go-lpr/segment"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newTestFinder(t *testing.T, cfg Config) *Finder {
	t.Helper()
	seg, err := segment.NewSegmenter(segment.DefaultConfig())
	require.NoError(t, err)
	f, err := NewFinder(cfg, seg)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// fakeSegmenter returns a fixed number of blank glyphs for any region.
type fakeSegmenter struct {
	n   int
	err error
}

func (s fakeSegmenter) Segment(gocv.Mat) ([]segment.Glyph, error) {
	if s.err != nil {
		return nil, s.err
	}
	glyphs := make([]segment.Glyph, s.n)
	for i := range glyphs {
		glyphs[i] = segment.Glyph{Image: fixture.Frame(8, 16, 255), Box: image.Rect(i*10, 0, i*10+8, 16)}
	}
	return glyphs, nil
}

func TestFindPossiblePlates_SinglePlate(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()
	before := images.ComputeMatChecksum(frame)

	cfg := DefaultConfig()
	f := newTestFinder(t, cfg)

	plates, err := f.FindPossiblePlates(frame)
	require.NoError(t, err)
	defer ClosePlates(plates)

	require.Len(t, plates, 1)
	p := plates[0]
	require.Len(t, p.Glyphs, 8)

	bounds := images.Bounds(frame.Cols(), frame.Rows())
	assert.True(t, p.Candidate.In(bounds))
	assert.True(t, p.Box.In(p.Candidate), "refined box must lie inside the candidate box")
	assert.Equal(t, p.Box.Min, p.Origin)
	assert.True(t, cfg.Area.Contains(float64(images.RectArea(p.Box))))
	assert.True(t, cfg.Ratio.Contains(images.RectRatio(p.Box)))
	assert.Equal(t, p.Candidate.Dx(), p.Region.Cols())

	for i := 1; i < len(p.Glyphs); i++ {
		assert.Less(t, p.Glyphs[i-1].Box.Min.X, p.Glyphs[i].Box.Min.X)
	}

	assert.Equal(t, before, images.ComputeMatChecksum(frame), "the frame must not be modified")
}

func TestFindPossiblePlates_EmptyFrames(t *testing.T) {
	f := newTestFinder(t, DefaultConfig())

	for _, level := range []float64{0, 255} {
		frame := fixture.Frame(fixture.FrameWidth, fixture.FrameHeight, level)
		plates, err := f.FindPossiblePlates(frame)
		frame.Close()

		require.NoError(t, err)
		assert.Empty(t, plates)
	}
}

// TestFindPossiblePlates_FiveGlyphs checks that a plate-shaped region passes the geometry
// stage but is discarded by the glyph count.
func TestFindPossiblePlates_FiveGlyphs(t *testing.T) {
	frame := fixture.PlateFrame(5, 8)
	defer frame.Close()

	cfg := DefaultConfig()
	f := newTestFinder(t, cfg)

	mask, err := f.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()
	cands := NewGeometryFilter(cfg).Candidates(frame, mask)
	assert.Len(t, cands, 1)
	CloseCandidates(cands)

	plates, err := f.FindPossiblePlates(frame)
	require.NoError(t, err)
	assert.Empty(t, plates)
}

func TestFindPossiblePlates_GlyphCountBoundary(t *testing.T) {
	tests := []struct {
		name          string
		glyphs, slots int
		expected      int
	}{
		{name: "Seven", glyphs: 7, slots: 8, expected: 0},
		{name: "Eight", glyphs: 8, slots: 8, expected: 1},
		{name: "Nine", glyphs: 9, slots: 9, expected: 0},
	}

	f := newTestFinder(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := fixture.PlateFrame(tt.glyphs, tt.slots)
			defer frame.Close()

			plates, err := f.FindPossiblePlates(frame)
			require.NoError(t, err)
			defer ClosePlates(plates)
			assert.Len(t, plates, tt.expected)
		})
	}
}

func TestFindPossiblePlates_RequiredGlyphs(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	tests := []struct {
		name     string
		required int
		returned int
		expected int
	}{
		{name: "Exact match", required: 8, returned: 8, expected: 1},
		{name: "One short", required: 8, returned: 7, expected: 0},
		{name: "One over", required: 8, returned: 9, expected: 0},
		{name: "Any count", required: 0, returned: 5, expected: 1},
		{name: "Any count needs a glyph", required: 0, returned: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RequiredGlyphs = tt.required
			f, err := NewFinder(cfg, fakeSegmenter{n: tt.returned})
			require.NoError(t, err)
			defer f.Close()

			plates, err := f.FindPossiblePlates(frame)
			require.NoError(t, err)
			defer ClosePlates(plates)
			assert.Len(t, plates, tt.expected)
		})
	}
}

func TestFindPossiblePlates_SegmenterError(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	boom := errors.New("boom")
	f, err := NewFinder(DefaultConfig(), fakeSegmenter{err: boom})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.FindPossiblePlates(frame)
	assert.True(t, errors.Is(err, boom))
}

func TestFindPossiblePlates_InvalidFrame(t *testing.T) {
	f := newTestFinder(t, DefaultConfig())

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := f.FindPossiblePlates(empty)
	assert.True(t, errors.Is(err, images.ErrInvalidFrame))

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC1)
	defer gray.Close()
	_, err = f.FindPossiblePlates(gray)
	assert.True(t, errors.Is(err, images.ErrInvalidFrame))
}

// TestFindPossiblePlates_WorkersKeepOrder runs two plates through one and four workers and
// expects identical results in identical order.
func TestFindPossiblePlates_WorkersKeepOrder(t *testing.T) {
	frame := fixture.Frame(fixture.FrameWidth, fixture.FrameHeight, 0)
	defer frame.Close()
	fixture.DrawPlate(&frame, image.Pt(60, 80), fixture.Slots(8, 8))
	fixture.DrawPlate(&frame, image.Pt(320, 330), fixture.Slots(8, 8))

	run := func(workers int) []image.Rectangle {
		cfg := DefaultConfig()
		cfg.Workers = workers
		f := newTestFinder(t, cfg)
		plates, err := f.FindPossiblePlates(frame)
		require.NoError(t, err)
		defer ClosePlates(plates)

		boxes := make([]image.Rectangle, 0, len(plates))
		for _, p := range plates {
			boxes = append(boxes, p.Box)
		}
		return boxes
	}

	sequential := run(1)
	require.Len(t, sequential, 2)
	assert.Equal(t, sequential, run(4))
}

func TestFindPossiblePlates_BoundedByContours(t *testing.T) {
	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	cfg := DefaultConfig()
	f := newTestFinder(t, cfg)

	mask, err := f.Mask(frame)
	require.NoError(t, err)
	defer mask.Close()
	contours := NewGeometryFilter(cfg).ExtractContours(mask)
	defer contours.Close()

	plates, err := f.FindPossiblePlates(frame)
	require.NoError(t, err)
	defer ClosePlates(plates)
	assert.LessOrEqual(t, len(plates), contours.Size())
}

func TestNewFinder_Validation(t *testing.T) {
	_, err := NewFinder(Config{}, fakeSegmenter{})
	assert.Error(t, err)

	_, err = NewFinder(DefaultConfig(), nil)
	assert.Error(t, err)
}
