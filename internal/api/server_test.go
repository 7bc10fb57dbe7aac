package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/quantaml/quanta/internal/labels"
	"github.com/quantaml/quanta/internal/preprocess"
	"github.com/quantaml/quanta/internal/tensor"
)

type testEngine struct {
	scores []float32
	err    error
}

func (e testEngine) Run(_ context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	if e.err != nil {
		return nil, e.err
	}
	if inputs["input"] == nil {
		panic("missing input tensor")
	}
	out, _ := tensor.NewDense([]int64{1, int64(len(e.scores))}, e.scores)
	return map[string]*tensor.Dense{"logits": out}, nil
}

func newTestEcho(t *testing.T, engine Engine) *echo.Echo {
	t.Helper()
	pre, err := preprocess.New(preprocess.Options{
		Width: 8, Height: 8,
		Mean: preprocess.DefaultMean, Std: preprocess.DefaultStd,
	})
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(Config{
		Engine:    engine,
		Pre:       pre,
		Labels:    labels.FromSlice([]string{"cat", "dog", "fish"}),
		ModelName: "tiny",
		TopK:      3,
	})
	e := echo.New()
	server.Register(e)
	return e
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(32 * x), G: 128, B: uint8(32 * y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestClassifyRawBody(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, testEngine{scores: []float32{0.2, 3.1, -0.5}})
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader(testPNG(t)))
	req.Header.Set(echo.HeaderContentType, "image/png")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "req_") {
		t.Errorf("request id = %q", resp.ID)
	}
	if len(resp.Predictions) != 3 {
		t.Fatalf("got %d predictions, want 3", len(resp.Predictions))
	}
	if resp.Predictions[0].Label != "dog" {
		t.Errorf("top label = %q, want dog", resp.Predictions[0].Label)
	}
	var sum float64
	for _, p := range resp.Predictions {
		sum += float64(p.Probability)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %v", sum)
	}
}

func TestClassifyJSONBase64(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, testEngine{scores: []float32{2, 1, 0}})
	body, err := json.Marshal(ClassifyRequest{
		Image: base64.StdEncoding.EncodeToString(testPNG(t)),
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ClassifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Predictions[0].Label != "cat" {
		t.Errorf("top label = %q, want cat", resp.Predictions[0].Label)
	}
}

func TestClassifyRejectsBadImage(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, testEngine{scores: []float32{1, 0, 0}})
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader("not an image"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_image") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestModelEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, testEngine{scores: []float32{1, 0, 0}})
	req := httptest.NewRequest(http.MethodGet, "/v1/model", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ModelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "tiny" || resp.InputWidth != 8 || resp.Classes != 3 {
		t.Errorf("model response = %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, testEngine{scores: []float32{1, 0, 0}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}
