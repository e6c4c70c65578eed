package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

var (
	OrientationLabels = []string{"hdvb", "hdvf", "huvb", "huvf"}
	PlaneLabels       = []string{"AC_PLANE", "BPD_PLANE", "NO_Plane", "FL_PLANE"}
)

// Classifier runs one forward pass and returns the raw class logits.
type Classifier interface {
	Logits(ctx context.Context, input Tensor) ([]float32, error)
}

// Prediction is the most likely label and its probability in percent.
type Prediction struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// Classify runs c on input and maps the argmax of the softmax onto labels.
func Classify(ctx context.Context, c Classifier, labels []string, input Tensor) (Prediction, error) {
	logits, err := c.Logits(ctx, input)
	if err != nil {
		return Prediction{}, err
	}
	if len(logits) != len(labels) {
		return Prediction{}, fmt.Errorf("model returned %d logits for %d labels", len(logits), len(labels))
	}
	probs := Softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return Prediction{Prediction: labels[best], Confidence: probs[best] * 100}, nil
}

// Softmax is computed in float64 with the max subtracted for stability.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	m := math.Inf(-1)
	for _, v := range logits {
		m = math.Max(m, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// RemoteClassifier calls a model server speaking the KServe v2 / Triton
// inference protocol.
type RemoteClassifier struct {
	URL    string
	client *http.Client
}

func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClassifier{URL: url, client: &http.Client{Timeout: timeout}}
}

type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferRequest struct {
	Inputs []inferTensor `json:"inputs"`
}

type inferResponse struct {
	Outputs []inferTensor `json:"outputs"`
	Error   string        `json:"error,omitempty"`
}

func (r *RemoteClassifier) Logits(ctx context.Context, input Tensor) ([]float32, error) {
	body, err := json.Marshal(inferRequest{Inputs: []inferTensor{{Name: "input", Shape: input.Shape, Datatype: "FP32", Data: input.Data}}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("model server: %w", err)
	}
	var out inferResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("model server: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server: status %d: %s", resp.StatusCode, out.Error)
	}
	if len(out.Outputs) == 0 {
		return nil, errors.New("model server: no outputs")
	}
	return out.Outputs[0].Data, nil
}
