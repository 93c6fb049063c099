package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	inputSize = 224
)

// Classifier runs the discus ResNet ONNX export locally. The model takes a
// [1,3,224,224] float32 tensor scaled to [0,1] and emits one logit per label.
type Classifier struct {
	mu sync.Mutex

	modelPath string
	libPath   string
	labels    []string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	inited  bool
}

// NewClassifier creates a classifier that lazily loads the model on first use.
func NewClassifier(modelPath, onnxLibPath string, labels []string) *Classifier {
	if len(labels) == 0 {
		labels = Labels
	}
	return &Classifier{
		modelPath: modelPath,
		libPath:   onnxLibPath,
		labels:    labels,
	}
}

func (c *Classifier) Name() string {
	return "onnx"
}

// initLocked loads the shared library, environment and session. c.mu must be held.
func (c *Classifier) initLocked() error {
	if c.inited {
		return nil
	}

	if c.libPath != "" {
		ort.SetSharedLibraryPath(c.libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("%w: onnx init environment: %v", ErrPredictorUnavailable, err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("%w: onnx get input/output info: %v", ErrPredictorUnavailable, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("%w: onnx model has no inputs or outputs", ErrPredictorUnavailable)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputSize, inputSize))
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(c.labels))))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(c.modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("%w: onnx new session: %v", ErrPredictorUnavailable, err)
	}

	c.input = inputTensor
	c.output = outputTensor
	c.session = session
	c.inited = true
	return nil
}

// Predict decodes the image, runs inference and reports the top label with its
// softmax probability.
func (c *Classifier) Predict(ctx context.Context, img Image) (*Prediction, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	inputData := preprocess(decoded)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(); err != nil {
		return nil, err
	}

	copy(c.input.GetData(), inputData)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	probs := softmax(c.output.GetData())
	idx := argmax(probs)
	if idx < 0 || idx >= len(c.labels) {
		return nil, fmt.Errorf("onnx output index %d out of range", idx)
	}
	label := c.labels[idx]

	return &Prediction{
		PredictedClass: label,
		Confidence:     FormatConfidence(float64(probs[idx])),
		Description:    DescriptionFor(label),
	}, nil
}

// Close releases the session and tensors. The classifier cannot be reused.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inited {
		return
	}
	c.session.Destroy()
	c.input.Destroy()
	c.output.Destroy()
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
	c.inited = false
}

// preprocess resizes to 224x224 and lays the RGB channels out NCHW in [0,1].
func preprocess(img image.Image) []float32 {
	resized := resize.Resize(inputSize, inputSize, img, resize.Bilinear)

	const plane = inputSize * inputSize
	out := make([]float32, 3*plane)
	b := resized.Bounds()
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*inputSize + x
			out[idx] = float32(r) / 65535.0
			out[plane+idx] = float32(g) / 65535.0
			out[2*plane+idx] = float32(bl) / 65535.0
		}
	}
	return out
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func argmax(values []float32) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}
