package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fixedClassifier struct {
	logits []float32
	err    error
}

func (f fixedClassifier) Logits(context.Context, Tensor) ([]float32, error) { return f.logits, f.err }

func redPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float32{1000, 1000, 0, -5})
	var sum float64
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("softmax sums to %v", sum)
	}
	if math.Abs(p[0]-0.5) > 1e-9 || p[3] > p[2] {
		t.Fatalf("unexpected probabilities %v", p)
	}
}

func TestClassifyArgmax(t *testing.T) {
	got, err := Classify(context.Background(), fixedClassifier{logits: []float32{0.1, 3, 0.2, 0.1}}, PlaneLabels, Tensor{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Prediction != "BPD_PLANE" || got.Confidence <= 50 || got.Confidence > 100 {
		t.Fatalf("unexpected prediction %+v", got)
	}
	if _, err := Classify(context.Background(), fixedClassifier{logits: []float32{1, 2}}, PlaneLabels, Tensor{}); err == nil {
		t.Fatal("expected label count mismatch error")
	}
}

func TestPreprocessShapeAndScale(t *testing.T) {
	in, err := Preprocess(bytes.NewReader(redPNG(t, 50, 30)))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(in.Shape) != 4 || in.Shape[1] != 3 || in.Shape[2] != InputSize || in.Shape[3] != InputSize {
		t.Fatalf("shape %v", in.Shape)
	}
	const plane = InputSize * InputSize
	if len(in.Data) != 3*plane {
		t.Fatalf("len %d", len(in.Data))
	}
	if in.Data[0] != 1 || in.Data[plane] != 0 || in.Data[2*plane] != 0 {
		t.Fatalf("expected pure red, got r=%v g=%v b=%v", in.Data[0], in.Data[plane], in.Data[2*plane])
	}
	if _, err := Preprocess(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req inferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Inputs) != 1 || req.Inputs[0].Datatype != "FP32" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(inferResponse{Error: "bad request"})
			return
		}
		json.NewEncoder(w).Encode(inferResponse{Outputs: []inferTensor{{Name: "logits", Shape: []int{1, 4}, Datatype: "FP32", Data: []float32{0, 0, 5, 0}}}})
	}))
	defer srv.Close()

	rc := NewRemoteClassifier(srv.URL, time.Second)
	got, err := Classify(context.Background(), rc, OrientationLabels, Tensor{Shape: []int{1, 3, 1, 1}, Data: []float32{0, 0, 0}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Prediction != "huvb" {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func upload(t *testing.T, r http.Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, _ := mw.CreateFormFile(field, filename)
		fw.Write(content)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredictHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(
		fixedClassifier{logits: []float32{4, 0, 0, 0}},
		fixedClassifier{logits: []float32{0, 0, 0, 4}},
	).RegisterRoutes(r)

	w := upload(t, r, "file", "scan.png", redPNG(t, 10, 10))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Orientation Prediction `json:"orientation"`
		Plane       Prediction `json:"plane"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Orientation.Prediction != "hdvb" || resp.Plane.Prediction != "FL_PLANE" {
		t.Fatalf("unexpected response %s", w.Body.String())
	}

	if w := upload(t, r, "image", "scan.png", redPNG(t, 10, 10)); w.Code != http.StatusOK {
		t.Fatalf("image field: status=%d", w.Code)
	}
	if w := upload(t, r, "", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status=%d", w.Code)
	}
	if w := upload(t, r, "file", "notes.txt", []byte("just some text")); w.Code != http.StatusBadRequest {
		t.Fatalf("text file: status=%d", w.Code)
	}
}

func TestPredictHandlerModelFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(fixedClassifier{err: errors.New("gpu lost")}, fixedClassifier{logits: []float32{1, 0, 0, 0}}).RegisterRoutes(r)
	if w := upload(t, r, "file", "scan.png", redPNG(t, 10, 10)); w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}
