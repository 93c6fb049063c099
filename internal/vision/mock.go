package vision

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Samples is the fixed set the mock predictor draws from.
var Samples = []Prediction{
	{
		PredictedClass: "Red Checkerboard",
		Confidence:     "92.3%",
		Description:    "Red Checkerboard Discus has a vibrant red body with white mosaic-like patterns. Highly valued in the ornamental fish trade.",
	},
	{
		PredictedClass: "Blue Diamond",
		Confidence:     "95.1%",
		Description:    "Blue Diamond Discus is characterized by its striking blue coloration and diamond-like reflective scales, making it a highly sought-after variety among aquarium enthusiasts.",
	},
	{
		PredictedClass: "Pigeon Blood",
		Confidence:     "89.7%",
		Description:    "Pigeon Blood Discus features a rich red base color with white spotting patterns. Known for its intense red coloration similar to pigeon blood.",
	},
	{
		PredictedClass: "Snake Skin",
		Confidence:     "87.2%",
		Description:    "Snake Skin Discus has a distinctive pattern resembling snake scales, typically with brown or gray markings on a lighter background.",
	},
	{
		PredictedClass: "Golden Leopard",
		Confidence:     "91.5%",
		Description:    "Golden Leopard Discus exhibits a stunning golden base with dark spots similar to a leopard's pattern, creating a visually striking appearance.",
	},
}

// SampleFor maps a seed onto Samples. Same seed, same sample.
func SampleFor(seed int64) Prediction {
	idx := seed % int64(len(Samples))
	if idx < 0 {
		idx = -idx
	}
	return Samples[idx]
}

// MockPredictor returns a random sample after a simulated delay. It ignores
// the image content.
type MockPredictor struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockPredictor seeds the generator with seed, or with the clock when seed
// is zero.
func NewMockPredictor(seed int64, delay time.Duration) *MockPredictor {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockPredictor{
		delay: delay,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (m *MockPredictor) Name() string {
	return "mock"
}

func (m *MockPredictor) Predict(ctx context.Context, _ Image) (*Prediction, error) {
	m.mu.Lock()
	seed := m.rng.Int63()
	m.mu.Unlock()

	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p := SampleFor(seed)
	return &p, nil
}
