package conf

// Fixed analysis constants. These mirror the classifier's training
// configuration and must not drift from it.
const (
	// SampleRate is the sample rate the analysis pipeline operates at.
	SampleRate = 22050

	// TargetDuration is the analysis window length in seconds.
	TargetDuration = 3.0

	// NFFT is the STFT window size in samples.
	NFFT = 1024

	// HopLength is the STFT hop size in samples.
	HopLength = 256

	// NMels is the number of mel bands in the feature tensor.
	NMels = 64

	// ExpectedTimeFrames is the fixed time axis of the feature tensor.
	ExpectedTimeFrames = 259

	// TensorChannels is the channel count the classifier expects. The mono
	// feature plane is replicated to this many identical channels.
	TensorChannels = 3

	// MinLocalizationChannels is the minimum microphone channel count for
	// real TDOA-based localization.
	MinLocalizationChannels = 3
)
