package features

import "github.com/dronewatch/dronewatch-go/internal/conf"

// FeatureTensor is the (3, 64, 259) float32 tensor consumed by the
// classifier. The shape is a hard contract: it never varies with input
// duration. Data is laid out channel-major, then mel band, then time frame,
// matching the classifier's input tensor layout.
type FeatureTensor struct {
	data []float32
}

// Shape returns the fixed (channels, melBands, timeFrames) dimensions.
func (ft *FeatureTensor) Shape() (channels, melBands, timeFrames int) {
	return conf.TensorChannels, conf.NMels, conf.ExpectedTimeFrames
}

// At returns the value at (channel, melBand, timeFrame).
func (ft *FeatureTensor) At(channel, melBand, timeFrame int) float32 {
	return ft.data[(channel*conf.NMels+melBand)*conf.ExpectedTimeFrames+timeFrame]
}

// Values returns the flat backing slice in input-tensor order. Callers must
// treat it as read-only.
func (ft *FeatureTensor) Values() []float32 {
	return ft.data
}

// Len returns the total element count, 3*64*259.
func (ft *FeatureTensor) Len() int {
	return len(ft.data)
}
