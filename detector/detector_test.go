package detector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-track/images"
)

// block is a filled rectangle of constant intensity, rows [r0,r1) cols [c0,c1).
type block struct {
	r0, c0, r1, c1 int
	value          float32
}

func blockFrame(width, height int, blocks ...block) *images.Frame {
	f := images.NewFrame(width, height)
	for _, b := range blocks {
		for r := b.r0; r < b.r1; r++ {
			for c := b.c0; c < b.c1; c++ {
				f.Set(r, c, b.value)
			}
		}
	}
	return f
}

func fullRegion(width, height int) *Region {
	return newRegion(images.FullMask(width, height))
}

func segmentConfig(minSize int) SegmentConfig {
	cfg := DefaultSegmentConfig()
	cfg.MinComponentSize = minSize
	return cfg
}

func TestSegmentAllZeroFrameHasNoForeground(t *testing.T) {
	for _, policy := range []SegmentationPolicy{PolicyRelativeBrightness, PolicyFixedThreshold, PolicyFixedThenRelative} {
		t.Run(policy.String(), func(t *testing.T) {
			cfg := segmentConfig(4)
			cfg.Policy = policy
			seg, err := Segment(images.NewFrame(12, 9), fullRegion(12, 9), cfg)
			require.NoError(t, err)
			assert.Zero(t, seg.Foreground)
			assert.True(t, seg.Labels.Binary().Empty())
			assert.Empty(t, seg.Candidates)
			assert.Equal(t, Absent, extract(t, seg, cfg.MinComponentSize, cfg.Degenerate))
		})
	}
}

// extract runs Extract and fails the test on an erosion error.
func extract(t *testing.T, seg *Segmentation, minComponentSize int, policy DegeneratePolicy) Centroid {
	t.Helper()
	c, err := Extract(seg, minComponentSize, policy)
	require.NoError(t, err)
	return c
}

// The documented 4x4 block example at min size 4 lists a 16 pixel candidate,
// which contradicts the erosion gate (16 > 2*4). The gate wins: the candidate
// is the 4 pixel core and the centroid stays at (4, 4).
func TestSingleBlockScenario(t *testing.T) {
	frame := blockFrame(10, 10, block{3, 3, 7, 7, 200})

	tests := []struct {
		name          string
		minSize       int
		candidateSize int
	}{
		{
			// 16 > 2*4 so the erosion gate shrinks the block to its 2x2 core.
			name:          "Erosion gate open",
			minSize:       4,
			candidateSize: 4,
		},
		{
			name:          "Erosion gate closed keeps all 16 pixels",
			minSize:       8,
			candidateSize: 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := segmentConfig(tt.minSize)
			seg, err := Segment(frame, fullRegion(10, 10), cfg)
			require.NoError(t, err)
			require.Len(t, seg.Candidates, 1)
			assert.Equal(t, tt.candidateSize, seg.Candidates[0].Size)
			assert.Equal(t, float32(147), seg.Threshold)
			assert.Equal(t, PolicyRelativeBrightness, seg.Policy)

			assert.Equal(t, At(4, 4), extract(t, seg, cfg.MinComponentSize, cfg.Degenerate))
		})
	}
}

func TestSymmetricBlobCentroidIsGeometricCenter(t *testing.T) {
	frame := blockFrame(24, 16, block{5, 10, 10, 15, 0.9})
	det, err := New(fullRegion(24, 16), segmentConfig(4))
	require.NoError(t, err)

	c, err := det.Detect(frame)
	require.NoError(t, err)
	assert.Equal(t, At(7, 12), c)
}

func TestExtractSelectsLargestCandidate(t *testing.T) {
	mask := images.NewMask(20, 20)
	// Label 1: 30 pixels (5x6), label 2: 50 pixels (5x10).
	for r := 1; r < 6; r++ {
		for c := 1; c < 7; c++ {
			mask.Set(r, c, true)
		}
	}
	for r := 10; r < 15; r++ {
		for c := 5; c < 15; c++ {
			mask.Set(r, c, true)
		}
	}
	labels := images.Label(mask, images.Connectivity8)
	seg := &Segmentation{Labels: labels, Candidates: labels.Components()}
	require.Equal(t, []images.Component{{Label: 1, Size: 30}, {Label: 2, Size: 50}}, seg.Candidates)

	best, ok := SelectCandidate(seg.Candidates)
	require.True(t, ok)
	assert.Equal(t, int32(2), best.Label)

	// 50 > 2*20, the blob is eroded to rows 11-13, cols 6-13 before averaging.
	assert.Equal(t, At(12, 9), extract(t, seg, 20, DegenerateAbsent))
}

func TestDetectPicksLargerOfTwoBlobs(t *testing.T) {
	frame := blockFrame(20, 20,
		block{12, 2, 17, 8, 1}, // 30 pixels
		block{2, 2, 7, 12, 1},  // 50 pixels
	)
	det, err := New(fullRegion(20, 20), segmentConfig(10))
	require.NoError(t, err)

	c, err := det.Detect(frame)
	require.NoError(t, err)
	assert.Equal(t, At(4, 6), c)
}

func TestSelectCandidateTieGoesToLowestLabel(t *testing.T) {
	best, ok := SelectCandidate([]images.Component{{Label: 1, Size: 9}, {Label: 2, Size: 9}})
	require.True(t, ok)
	assert.Equal(t, int32(1), best.Label)

	_, ok = SelectCandidate(nil)
	assert.False(t, ok)
}

func TestExtractDegenerateComponent(t *testing.T) {
	// A one pixel wide line erodes away completely under the cross footprint.
	mask := images.NewMask(12, 6)
	for c := 0; c < 10; c++ {
		mask.Set(3, c, true)
	}
	labels := images.Label(mask, images.Connectivity8)
	seg := &Segmentation{Labels: labels, Candidates: labels.Components()}

	assert.Equal(t, Absent, extract(t, seg, 2, DegenerateAbsent))
	assert.Equal(t, At(3, 4), extract(t, seg, 2, DegenerateRevert))
	assert.Equal(t, Absent, extract(t, nil, 2, DegenerateRevert))
}

func TestSmallBlobSurvivesErosionGate(t *testing.T) {
	frame := blockFrame(15, 15, block{6, 6, 9, 9, 1})
	seg, err := Segment(frame, fullRegion(15, 15), segmentConfig(5))
	require.NoError(t, err)
	require.Len(t, seg.Candidates, 1)
	assert.Equal(t, 9, seg.Candidates[0].Size)
	assert.Equal(t, At(7, 7), extract(t, seg, 5, DegenerateAbsent))
}

func TestSegmentRemovesNoiseWhenCrowded(t *testing.T) {
	frame := blockFrame(30, 30,
		block{4, 4, 10, 10, 1},   // animal, 36 pixels
		block{20, 20, 23, 23, 1}, // speck, 9 pixels, erodes to 1
	)
	seg, err := Segment(frame, fullRegion(30, 30), segmentConfig(4))
	require.NoError(t, err)
	require.Len(t, seg.Candidates, 1)
	assert.Equal(t, 16, seg.Candidates[0].Size)
}

func TestSegmentRespectsRegion(t *testing.T) {
	frame := blockFrame(20, 20,
		block{0, 0, 6, 20, 1},   // bright wall strip outside the region
		block{10, 8, 14, 12, 1}, // animal
	)
	region, err := BorderCrop(20, 20)
	require.NoError(t, err)
	for r := 0; r < 7; r++ {
		for c := 0; c < 20; c++ {
			region.Mask.Set(r, c, false)
		}
	}

	det, err := New(region, segmentConfig(2))
	require.NoError(t, err)
	c, err := det.Detect(frame)
	require.NoError(t, err)
	assert.Equal(t, At(11, 9), c)
}

func TestSegmentPolicies(t *testing.T) {
	frame := blockFrame(16, 16, block{4, 4, 9, 9, 0.6})

	tests := []struct {
		name       string
		policy     SegmentationPolicy
		fixed      float32
		candidates int
		used       SegmentationPolicy
	}{
		{name: "Fixed threshold below blob", policy: PolicyFixedThreshold, fixed: 128, candidates: 1, used: PolicyFixedThreshold},
		{name: "Fixed threshold above blob", policy: PolicyFixedThreshold, fixed: 255, candidates: 0, used: PolicyFixedThreshold},
		{name: "Fallback keeps fixed result", policy: PolicyFixedThenRelative, fixed: 128, candidates: 1, used: PolicyFixedThreshold},
		{name: "Fallback to relative", policy: PolicyFixedThenRelative, fixed: 255, candidates: 1, used: PolicyRelativeBrightness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := segmentConfig(4)
			cfg.Policy = tt.policy
			cfg.FixedThreshold = tt.fixed
			seg, err := Segment(frame, fullRegion(16, 16), cfg)
			require.NoError(t, err)
			assert.Len(t, seg.Candidates, tt.candidates)
			assert.Equal(t, tt.used, seg.Policy)
		})
	}
}

func TestSegmentMaxComponentSize(t *testing.T) {
	frame := blockFrame(40, 40,
		block{2, 2, 12, 12, 1},   // reflection, 100 pixels
		block{25, 25, 30, 30, 1}, // animal, 25 pixels
	)
	cfg := segmentConfig(4)
	cfg.MaxComponentSize = 30
	det, err := New(fullRegion(40, 40), cfg)
	require.NoError(t, err)

	c, err := det.Detect(frame)
	require.NoError(t, err)
	assert.Equal(t, At(27, 27), c)
}

func TestSegmentWithBlur(t *testing.T) {
	frame := blockFrame(30, 30, block{10, 10, 17, 17, 1})
	cfg := segmentConfig(4)
	cfg.BlurSigma = 1
	det, err := New(fullRegion(30, 30), cfg)
	require.NoError(t, err)

	c, err := det.Detect(frame)
	require.NoError(t, err)
	require.True(t, c.Present)
	assert.InDelta(t, 13, c.Row, 1)
	assert.InDelta(t, 13, c.Col, 1)
}

func TestDetectIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	frame := blockFrame(64, 48, block{20, 30, 28, 40, 0.8})
	for i := range frame.Pix {
		frame.Pix[i] += rng.Float32() * 0.3
	}
	det, err := New(fullRegion(64, 48), segmentConfig(8))
	require.NoError(t, err)

	first, err := det.Detect(frame)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := det.Detect(frame)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSegmentDimensionMismatch(t *testing.T) {
	_, err := Segment(images.NewFrame(10, 10), fullRegion(12, 10), DefaultSegmentConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Segment(images.NewFrame(10, 10), &Region{Mask: images.NewMask(10, 10)}, DefaultSegmentConfig())
	assert.ErrorIs(t, err, ErrNoValidRegion)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, DefaultSegmentConfig())
	assert.ErrorIs(t, err, ErrNoValidRegion)

	cfg := DefaultSegmentConfig()
	cfg.Connectivity = 6
	_, err = New(fullRegion(4, 4), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
