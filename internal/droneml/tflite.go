package droneml

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
	"github.com/dronewatch/dronewatch-go/internal/features"
	"github.com/dronewatch/dronewatch-go/internal/logging"
)

// outputClasses is the binary head of the detector: index 0 is not-drone,
// index 1 is drone.
const outputClasses = 2

// DroneNet wraps a TensorFlow Lite drone detection model. Invoke reuses the
// interpreter's tensors, so inference is serialized with a mutex; callers may
// share one DroneNet across goroutines.
type DroneNet struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
	settings    *conf.Settings
	mu          sync.Mutex
}

var _ Classifier = (*DroneNet)(nil)

func getLogger() *slog.Logger {
	if l := logging.ForService("droneml"); l != nil {
		return l
	}
	return slog.Default()
}

// NewDroneNet loads the TFLite model from settings.Detection.ModelPath and
// prepares an interpreter for it.
func NewDroneNet(settings *conf.Settings) (*DroneNet, error) {
	modelData, err := os.ReadFile(settings.Detection.ModelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model file: %w", err)).
			Component("droneml").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.Detection.ModelPath).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("droneml").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.Detection.ModelPath).
			Context("model_size_mb", len(modelData)/1024/1024).
			Build()
	}

	dn := &DroneNet{model: model, settings: settings}
	if err := dn.initializeInterpreter(); err != nil {
		model.Delete()
		return nil, err
	}

	// The interpreter keeps its own copy of the model graph; reclaim the
	// file bytes promptly.
	runtime.GC()

	getLogger().Info("drone detection model initialized",
		"model_path", settings.Detection.ModelPath,
		"threads", dn.threadCount(),
		"total_cpus", runtime.NumCPU())
	return dn, nil
}

func (dn *DroneNet) initializeInterpreter() error {
	threads := dn.threadCount()

	options := tflite.NewInterpreterOptions()

	if dn.settings.Detection.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			getLogger().Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, userData any) {
		getLogger().Error("TFLite error", "message", msg)
	}, nil)

	dn.interpreter = tflite.NewInterpreter(dn.model, options)
	if dn.interpreter == nil {
		return errors.Newf("cannot create interpreter").
			Component("droneml").
			Category(errors.CategoryModelInit).
			Build()
	}
	if status := dn.interpreter.AllocateTensors(); status != tflite.OK {
		return errors.Newf("tensor allocation failed: %v", status).
			Component("droneml").
			Category(errors.CategoryModelInit).
			Build()
	}

	return dn.validateTensors()
}

// validateTensors checks that the model actually speaks this pipeline's
// contract: a (3, 64, 259) float32 input and a two-class output.
func (dn *DroneNet) validateTensors() error {
	input := dn.interpreter.GetInputTensor(0)
	if input == nil {
		return errors.Newf("cannot get input tensor from model").
			Component("droneml").
			Category(errors.CategoryValidation).
			Build()
	}
	wantLen := conf.TensorChannels * conf.NMels * conf.ExpectedTimeFrames
	if got := len(input.Float32s()); got != wantLen {
		return errors.Newf("model input size mismatch: want %d values, model expects %d", wantLen, got).
			Component("droneml").
			Category(errors.CategoryValidation).
			Context("model_path", dn.settings.Detection.ModelPath).
			Build()
	}

	output := dn.interpreter.GetOutputTensor(0)
	if output == nil {
		return errors.Newf("cannot get output tensor from model").
			Component("droneml").
			Category(errors.CategoryValidation).
			Build()
	}
	if got := output.Dim(output.NumDims() - 1); got != outputClasses {
		return errors.Newf("model output size mismatch: want %d classes, model has %d", outputClasses, got).
			Component("droneml").
			Category(errors.CategoryValidation).
			Context("model_path", dn.settings.Detection.ModelPath).
			Build()
	}
	return nil
}

func (dn *DroneNet) threadCount() int {
	systemCPUCount := runtime.NumCPU()
	configured := dn.settings.Detection.Threads
	if configured <= 0 || configured > systemCPUCount {
		return systemCPUCount
	}
	return configured
}

// Classify runs one inference pass over the tensor.
func (dn *DroneNet) Classify(tensor *features.FeatureTensor, threshold float64) (Prediction, error) {
	dn.mu.Lock()
	defer dn.mu.Unlock()

	input := dn.interpreter.GetInputTensor(0)
	if input == nil {
		return Prediction{}, errors.Newf("cannot get input tensor").
			Component("droneml").
			Category(errors.CategoryModelInference).
			Build()
	}
	copy(input.Float32s(), tensor.Values())

	if status := dn.interpreter.Invoke(); status != tflite.OK {
		return Prediction{}, errors.Newf("tensor invoke failed: %v", status).
			Component("droneml").
			Category(errors.CategoryModelInference).
			Build()
	}

	output := dn.interpreter.GetOutputTensor(0)
	scores := output.Float32s()
	if len(scores) < outputClasses {
		return Prediction{}, errors.Newf("unexpected output tensor length %d", len(scores)).
			Component("droneml").
			Category(errors.CategoryModelInference).
			Build()
	}

	return predictionFromLogits(scores[0], scores[1], threshold), nil
}

// Close releases the interpreter and model.
func (dn *DroneNet) Close() error {
	dn.mu.Lock()
	defer dn.mu.Unlock()
	if dn.interpreter != nil {
		dn.interpreter.Delete()
		dn.interpreter = nil
	}
	if dn.model != nil {
		dn.model.Delete()
		dn.model = nil
	}
	return nil
}
