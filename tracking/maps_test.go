package tracking

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-track/detector"
)

// gapTrajectory moves 3 px right, loses the animal for one frame, reappears
// 4 px lower and then stays put.
func gapTrajectory() Trajectory {
	return Trajectory{
		detector.At(1, 1),
		detector.At(1, 4),
		detector.Absent,
		detector.At(5, 4),
		detector.At(5, 4),
	}
}

func TestNewMapsGapPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   GapPolicy
		arrival  float64
		distance float64
	}{
		{name: "Break", policy: GapBreak, arrival: 0, distance: 3},
		{name: "Bridge", policy: GapBridge, arrival: 4, distance: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maps, err := NewMaps(gapTrajectory(), 8, 8, tt.policy)
			require.NoError(t, err)

			h, w := maps.Dims()
			assert.Equal(t, 8, h)
			assert.Equal(t, 8, w)

			assert.Equal(t, 1.0, maps.Time.At(1, 1))
			assert.Equal(t, 1.0, maps.Time.At(1, 4))
			assert.Equal(t, 2.0, maps.Time.At(5, 4))

			assert.Equal(t, 0.0, maps.Distance.At(1, 1))
			assert.Equal(t, 3.0, maps.Distance.At(1, 4))
			assert.Equal(t, tt.arrival, maps.Distance.At(5, 4))

			secs, px, err := maps.RectangleStats(image.Pt(0, 0), image.Pt(8, 8), 1, 1)
			require.NoError(t, err)
			assert.Equal(t, 4.0, secs)
			assert.Equal(t, tt.distance, px)
		})
	}
}

func TestStepsSkipAbsences(t *testing.T) {
	steps := Steps(gapTrajectory(), GapBreak)
	require.Len(t, steps, 2)
	assert.Equal(t, Step{Frame: 1, To: detector.At(1, 4), Distance: 3}, steps[0])
	assert.Equal(t, Step{Frame: 4, To: detector.At(5, 4), Distance: 0}, steps[1])

	assert.Empty(t, Steps(Trajectory{detector.Absent, detector.At(2, 2)}, GapBridge))
}

func TestNewMapsRejectsBadInput(t *testing.T) {
	_, err := NewMaps(Trajectory{detector.At(8, 0)}, 8, 8, GapBreak)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = NewMaps(nil, 0, 8, GapBreak)
	assert.ErrorIs(t, err, ErrEmptyVideo)

	_, err = NewMaps(nil, 8, 8, GapPolicy(4))
	assert.ErrorIs(t, err, ErrInvalidGapPolicy)
}

func TestRectangleStats(t *testing.T) {
	maps, err := NewMaps(gapTrajectory(), 8, 8, GapBridge)
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end image.Point
		secs, cm   float64
	}{
		{name: "Whole map", start: image.Pt(0, 0), end: image.Pt(8, 8), secs: 2, cm: 3.5},
		{name: "Reversed corners", start: image.Pt(5, 6), end: image.Pt(3, 4), secs: 1, cm: 2},
		{name: "End is exclusive", start: image.Pt(0, 0), end: image.Pt(4, 5), secs: 0.5, cm: 0},
		{name: "Never visited", start: image.Pt(6, 0), end: image.Pt(8, 3), secs: 0, cm: 0},
		{name: "Clipped to bounds", start: image.Pt(-5, -5), end: image.Pt(2, 2), secs: 0.5, cm: 0},
		{name: "Outside map", start: image.Pt(20, 20), end: image.Pt(30, 30), secs: 0, cm: 0},
		{name: "Degenerate", start: image.Pt(4, 5), end: image.Pt(4, 9), secs: 0, cm: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secs, cm, err := maps.RectangleStats(tt.start, tt.end, 2, 0.5)
			require.NoError(t, err)
			assert.InDelta(t, tt.secs, secs, 1e-12)
			assert.InDelta(t, tt.cm, cm, 1e-12)
		})
	}
}

func TestRectangleStatsAllZeroTime(t *testing.T) {
	maps, err := NewMaps(Trajectory{detector.Absent, detector.Absent}, 4, 4, GapBreak)
	require.NoError(t, err)
	for _, fps := range []float64{0.5, 1, 29.97, 60} {
		secs, cm, err := maps.RectangleStats(image.Pt(0, 0), image.Pt(4, 4), fps, 1)
		require.NoError(t, err)
		assert.Zero(t, secs)
		assert.Zero(t, cm)
	}
}

func TestRectangleStatsInvalidInput(t *testing.T) {
	maps, err := NewMaps(gapTrajectory(), 8, 8, GapBreak)
	require.NoError(t, err)

	for _, fps := range []float64{0, -30} {
		_, _, err := maps.RectangleStats(image.Pt(0, 0), image.Pt(8, 8), fps, 1)
		assert.ErrorIs(t, err, ErrInvalidFrameRate)
	}
	_, _, err = maps.RectangleStats(image.Pt(0, 0), image.Pt(8, 8), 30, -1)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestGapPolicyText(t *testing.T) {
	var p GapPolicy
	require.NoError(t, p.UnmarshalText([]byte("Bridge")))
	assert.Equal(t, GapBridge, p)

	text, err := GapBreak.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "break", string(text))

	assert.ErrorIs(t, p.UnmarshalText([]byte("interpolate")), ErrInvalidGapPolicy)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(gapTrajectory(), GapBreak, 5, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, s.Frames)
	assert.Equal(t, 4, s.Detections)
	assert.Equal(t, 1, s.Gaps)
	assert.InDelta(t, 0.2, s.GapFraction, 1e-12)
	assert.Equal(t, 3.0, s.DistancePixels)
	assert.Equal(t, 6.0, s.DistanceCm)
	assert.Equal(t, 3.0, s.MaxStepPixels)
	assert.Equal(t, 1.5, s.MeanStepPixels)
	assert.InDelta(t, 2.1213203, s.StepStdPixels, 1e-6)
	assert.Equal(t, 1.0, s.DurationSeconds)
	assert.Equal(t, 6.0, s.MeanSpeedCmS)

	bridged, err := Summarize(gapTrajectory(), GapBridge, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 7.0, bridged.DistancePixels)

	empty, err := Summarize(Trajectory{detector.Absent}, GapBreak, 5, 2)
	require.NoError(t, err)
	assert.Zero(t, empty.DistancePixels)
	assert.Equal(t, 1.0, empty.GapFraction)

	_, err = Summarize(gapTrajectory(), GapBreak, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidFrameRate)
}
