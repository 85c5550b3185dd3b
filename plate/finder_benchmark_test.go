package plate

import (
	"testing"

	"github.com/nvr-ai/go-lpr/internal/fixture"
	"github.com/nvr-ai/go-lpr/segment"
)

func benchmarkFinder(b *testing.B, workers int) {
	seg, err := segment.NewSegmenter(segment.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Workers = workers
	f, err := NewFinder(cfg, seg)
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		plates, err := f.FindPossiblePlates(frame)
		if err != nil {
			b.Fatal(err)
		}
		ClosePlates(plates)
	}
}

func BenchmarkFindPossiblePlates(b *testing.B) {
	b.Run("Workers1", func(b *testing.B) { benchmarkFinder(b, 1) })
	b.Run("Workers4", func(b *testing.B) { benchmarkFinder(b, 4) })
}

func BenchmarkPreprocess(b *testing.B) {
	p := NewPreprocessor(DefaultConfig())
	defer p.Close()

	frame := fixture.PlateFrame(8, 8)
	defer frame.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mask, err := p.Process(frame)
		if err != nil {
			b.Fatal(err)
		}
		mask.Close()
	}
}

