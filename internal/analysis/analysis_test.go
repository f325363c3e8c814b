package analysis

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/droneml"
	"github.com/dronewatch/dronewatch-go/internal/features"
	"github.com/dronewatch/dronewatch-go/internal/myaudio"
)

func testSettings() *conf.Settings {
	return &conf.Settings{
		Detection: conf.DetectionSettings{
			Threshold:       0.70,
			LongAudioCutoff: 10.0,
		},
		Localization: conf.LocalizationSettings{
			SpeedOfSound:     343.0,
			MaxMicSeparation: 2.0,
			PositionBound:    10.0,
			DefaultPoint:     conf.MicPosition{X: 1.0, Y: 1.0},
			MicPositions: []conf.MicPosition{
				{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 0, Y: 0.5},
			},
		},
	}
}

// toneWaveform builds an n-channel sine waveform of the given duration.
func toneWaveform(channels int, durationSec float64) *myaudio.Waveform {
	n := int(durationSec * float64(conf.SampleRate))
	base := make([]float32, n)
	for i := range base {
		base[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(conf.SampleRate)))
	}
	chs := make([][]float32, channels)
	for c := range chs {
		ch := make([]float32, n)
		copy(ch, base)
		chs[c] = ch
	}
	return &myaudio.Waveform{Channels: chs, SampleRate: conf.SampleRate}
}

// scriptedClassifier returns the given confidences in call order.
func scriptedClassifier(confidences ...float64) droneml.Classifier {
	call := 0
	return droneml.ClassifierFunc(func(_ *features.FeatureTensor, threshold float64) (droneml.Prediction, error) {
		c := confidences[call%len(confidences)]
		call++
		return droneml.Prediction{
			IsPositive: c >= threshold,
			Confidence: c,
			Probabilities: droneml.ClassProbabilities{
				NotDrone: 1 - c,
				Drone:    c,
			},
		}, nil
	})
}

func TestScan_SegmentCount(t *testing.T) {
	scanner := NewSegmentScanner(&droneml.StaticClassifier{DroneProbability: 0.1})

	// floor((12 - 3) / 1.5) + 1 full windows over 12 seconds.
	result, err := scanner.Scan(toneWaveform(1, 12.0), 0.7)
	require.NoError(t, err)
	require.Len(t, result.Segments, 7)

	for i, seg := range result.Segments {
		assert.InDelta(t, float64(i)*1.5, seg.StartTime, 1e-6)
		assert.InDelta(t, float64(i)*1.5+3.0, seg.EndTime, 1e-6)
	}
	assert.False(t, result.Detected)
	assert.Zero(t, result.DetectedSegments)
}

func TestScan_TooShortForOneWindow(t *testing.T) {
	scanner := NewSegmentScanner(&droneml.StaticClassifier{DroneProbability: 0.1})
	_, err := scanner.Scan(toneWaveform(1, 1.0), 0.7)
	require.Error(t, err)
}

func TestScan_BestSegmentTieBrokenByFirstOccurrence(t *testing.T) {
	scanner := NewSegmentScanner(scriptedClassifier(0.2, 0.9, 0.9, 0.1, 0.1, 0.1, 0.1))

	result, err := scanner.Scan(toneWaveform(1, 12.0), 0.7)
	require.NoError(t, err)
	require.NotNil(t, result.BestSegment)

	assert.InDelta(t, 1.5, result.BestSegment.StartTime, 1e-6)
	assert.InDelta(t, 0.9, result.MaxConfidence, 1e-9)
	assert.True(t, result.Detected)
	assert.Equal(t, 2, result.DetectedSegments)
}

func TestScan_FailedSegmentRecordedNotFatal(t *testing.T) {
	call := 0
	classifier := droneml.ClassifierFunc(func(_ *features.FeatureTensor, threshold float64) (droneml.Prediction, error) {
		call++
		if call == 2 {
			return droneml.Prediction{}, fmt.Errorf("inference blew up")
		}
		return droneml.Prediction{Confidence: 0.8, IsPositive: true}, nil
	})
	scanner := NewSegmentScanner(classifier)

	result, err := scanner.Scan(toneWaveform(1, 12.0), 0.7)
	require.NoError(t, err)
	require.Len(t, result.Segments, 7)

	assert.Error(t, result.Segments[1].Err())
	assert.Equal(t, 6, result.DetectedSegments, "the failed segment is excluded from the aggregate")
	assert.True(t, result.Detected)
}

func TestScan_AllSegmentsFailed(t *testing.T) {
	classifier := droneml.ClassifierFunc(func(_ *features.FeatureTensor, _ float64) (droneml.Prediction, error) {
		return droneml.Prediction{}, fmt.Errorf("model gone")
	})
	scanner := NewSegmentScanner(classifier)

	_, err := scanner.Scan(toneWaveform(1, 12.0), 0.7)
	require.Error(t, err)
}

func TestDetect_SingleWindow(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.9})

	result, err := o.Detect(toneWaveform(1, 3.0), DetectOptions{})
	require.NoError(t, err)

	assert.Equal(t, "single", result.AnalysisType)
	assert.True(t, result.DroneDetected)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.NotEmpty(t, result.ID)
	assert.Nil(t, result.Scan)
	assert.Nil(t, result.Localization, "Detect never localizes")
}

func TestDetect_SegmentedAboveCutoff(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.9})

	result, err := o.Detect(toneWaveform(1, 12.0), DetectOptions{AnalyzeLong: true})
	require.NoError(t, err)

	assert.Equal(t, "segmented", result.AnalysisType)
	require.NotNil(t, result.Scan)
	assert.Len(t, result.Scan.Segments, 7)
	assert.True(t, result.DroneDetected)
}

func TestDetect_LongAudioWithoutFlagStaysSingle(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.9})

	result, err := o.Detect(toneWaveform(1, 12.0), DetectOptions{AnalyzeLong: false})
	require.NoError(t, err)
	assert.Equal(t, "single", result.AnalysisType)
}

func TestDetect_ExplicitThresholdOverridesDefault(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.6})

	result, err := o.Detect(toneWaveform(1, 3.0), DetectOptions{})
	require.NoError(t, err)
	assert.False(t, result.DroneDetected, "0.6 is below the configured 0.7")

	result, err = o.Detect(toneWaveform(1, 3.0), DetectOptions{Threshold: 0.5})
	require.NoError(t, err)
	assert.True(t, result.DroneDetected)
}

func TestDetectAndLocalize_NegativeSkipsLocalization(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.1})

	result, err := o.DetectAndLocalize(toneWaveform(3, 3.0), DetectOptions{})
	require.NoError(t, err)
	assert.False(t, result.DroneDetected)
	assert.Nil(t, result.Localization)
	assert.Empty(t, result.LocalizationError)
}

func TestDetectAndLocalize_SimulatedFallback(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.9})

	result, err := o.DetectAndLocalize(toneWaveform(1, 3.0), DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Localization)

	loc := result.Localization
	assert.True(t, loc.Simulated)
	assert.GreaterOrEqual(t, loc.X, simulatedBaseX-simulatedJitterX)
	assert.LessOrEqual(t, loc.X, simulatedBaseX+simulatedJitterX)
	assert.GreaterOrEqual(t, loc.Y, simulatedBaseY-simulatedJitterY)
	assert.LessOrEqual(t, loc.Y, simulatedBaseY+simulatedJitterY)
	assert.Equal(t, []float64{0.0012, 0.0008}, loc.TDOAs)
}

func TestDetectAndLocalize_RealGeometry(t *testing.T) {
	o := NewOrchestrator(testSettings(), &droneml.StaticClassifier{DroneProbability: 0.9})

	// Identical channels mean zero delay everywhere, which the default
	// geometry resolves to the equidistant point (0.25, 0.25).
	result, err := o.DetectAndLocalize(toneWaveform(3, 3.0), DetectOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Localization)

	loc := result.Localization
	assert.False(t, loc.Simulated)
	assert.Len(t, loc.TDOAs, 2)
	assert.InDelta(t, 0.25, loc.X, 1e-6)
	assert.InDelta(t, 0.25, loc.Y, 1e-6)
}

func TestDetectAndLocalize_SolveFailureSurfaced(t *testing.T) {
	settings := testSettings()
	// Collinear microphones make the geometry singular.
	settings.Localization.MicPositions = []conf.MicPosition{
		{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 1.0, Y: 0},
	}
	o := NewOrchestrator(settings, &droneml.StaticClassifier{DroneProbability: 0.9})

	result, err := o.DetectAndLocalize(toneWaveform(3, 3.0), DetectOptions{})
	require.NoError(t, err, "the detection verdict survives a failed solve")

	assert.True(t, result.DroneDetected)
	assert.Nil(t, result.Localization)
	assert.NotEmpty(t, result.LocalizationError)
}

func TestDetectAndLocalize_SegmentedUsesBestSegmentAudio(t *testing.T) {
	o := NewOrchestrator(testSettings(), scriptedClassifier(0.2, 0.95, 0.3, 0.3, 0.3, 0.3, 0.3))

	result, err := o.DetectAndLocalize(toneWaveform(3, 12.0), DetectOptions{AnalyzeLong: true})
	require.NoError(t, err)

	require.NotNil(t, result.Scan)
	assert.InDelta(t, 1.5, result.Scan.BestSegment.StartTime, 1e-6)
	require.NotNil(t, result.Localization)
	assert.False(t, result.Localization.Simulated)
}
