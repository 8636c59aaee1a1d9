package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/journal"
	"github.com/Brownie44l1/ningapi/internal/model"
	"github.com/Brownie44l1/ningapi/internal/session"
	"github.com/Brownie44l1/ningapi/internal/speech"
)

type stubClassifier struct {
	output []float32
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, img *model.CapturedImage) (*model.ClassificationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return model.Decide(model.DefaultLabels(), s.output, time.Now())
}

func (s *stubClassifier) Ready() bool { return s.err == nil }

type stubHistory struct {
	entries []journal.Entry
	limit   int
}

func (s *stubHistory) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	s.limit = limit
	return s.entries, nil
}

func highUSD() []float32 {
	out := make([]float32, 14)
	out[6] = 0.93
	return out
}

func newRouter(t *testing.T, classifier *stubClassifier, history History, maxUpload int64) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	speaker := speech.NewController(speech.NewSilent(zap.NewNop()), speech.Voice{Locale: "fr-FR", Rate: 1}, zap.NewNop())
	registry := session.NewRegistry(session.Deps{
		Classifier: classifier,
		Speaker:    speaker,
		Logger:     zap.NewNop(),
	})
	h := NewHandler(classifier, registry, history, zap.NewNop(), maxUpload)
	router := gin.New()
	h.RegisterRoutes(router)
	t.Cleanup(func() {
		registry.CancelAll()
		h.Wait()
	})
	return router, h
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	img.SetNRGBA(1, 1, color.NRGBA{40, 120, 60, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, field string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "capture.png")
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func do(t *testing.T, router *gin.Engine, method, path string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != nil {
		body, contentType := buildMultipartBody(t, "image", payload)
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type snapshot struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Result *struct {
		Denomination string  `json:"denomination"`
		Confidence   float64 `json:"confidence"`
	} `json:"result"`
}

func snapshotOf(t *testing.T, resp *httptest.ResponseRecorder) snapshot {
	t.Helper()
	var s snapshot
	decode(t, resp, &s)
	return s
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", resp.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 0)

	resp := do(t, router, http.MethodGet, "/health", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["status"] != "healthy" || body["model_ready"] != true {
		t.Errorf("body = %v", body)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestPreflight(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 0)
	resp := do(t, router, http.MethodOptions, "/predict/image", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestPredictFromImage(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 0)

	resp := do(t, router, http.MethodPost, "/predict/image", pngBytes(t))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	var body struct {
		Denomination string `json:"denomination"`
		Currency     string `json:"currency"`
		Message      string `json:"message"`
		High         bool   `json:"high_confidence"`
	}
	decode(t, resp, &body)
	if body.Denomination != "20$" || body.Currency != "USD" || !body.High {
		t.Errorf("body = %+v", body)
	}
	if body.Message != "Billet détecté : 20 Dollars" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestPredictRejectsBadUploads(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 64)

	tests := []struct {
		name    string
		payload []byte
		field   string
		want    int
	}{
		{"not an image", []byte("hello"), "image", http.StatusBadRequest},
		{"wrong field", []byte("hello"), "file", http.StatusBadRequest},
		{"too large", bytes.Repeat([]byte("a"), 65), "image", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := buildMultipartBody(t, tt.field, tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/predict/image", body)
			req.Header.Set("Content-Type", contentType)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestPredictModelUnavailable(t *testing.T) {
	classifier := &stubClassifier{err: &model.InferenceError{Err: &model.ModelLoadError{Err: errors.New("missing")}}}
	router, _ := newRouter(t, classifier, nil, 0)

	resp := do(t, router, http.MethodPost, "/predict/image", pngBytes(t))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 0)

	resp := do(t, router, http.MethodPost, "/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected %d, got %d", http.StatusCreated, resp.Code)
	}
	var snap snapshot
	decode(t, resp, &snap)
	if snap.ID == "" || snap.State != "idle" {
		t.Fatalf("created session = %+v", snap)
	}
	base := "/sessions/" + snap.ID

	if resp := do(t, router, http.MethodPost, base+"/repeat", nil); resp.Code != http.StatusConflict {
		t.Fatalf("repeat from idle: expected %d, got %d", http.StatusConflict, resp.Code)
	}
	if resp := do(t, router, http.MethodPost, base+"/image", pngBytes(t)); resp.Code != http.StatusConflict {
		t.Fatalf("image before capture: expected %d, got %d", http.StatusConflict, resp.Code)
	}

	resp = do(t, router, http.MethodPost, base+"/capture", nil)
	snap = snapshotOf(t, resp)
	if resp.Code != http.StatusOK || snap.State != "capturing" {
		t.Fatalf("capture: %d %+v", resp.Code, snap)
	}

	resp = do(t, router, http.MethodPost, base+"/image", pngBytes(t))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("image: expected %d, got %d: %s", http.StatusAccepted, resp.Code, resp.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap = snapshotOf(t, do(t, router, http.MethodGet, base, nil))
		if snap.State == "result" || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.State != "result" || snap.Result == nil || snap.Result.Denomination != "20$" {
		t.Fatalf("session never reached result: %+v", snap)
	}

	if resp := do(t, router, http.MethodPost, base+"/repeat", nil); resp.Code != http.StatusOK {
		t.Fatalf("repeat: expected %d, got %d", http.StatusOK, resp.Code)
	}

	snap = snapshotOf(t, do(t, router, http.MethodPost, base+"/rescan", nil))
	if snap.State != "capturing" {
		t.Fatalf("rescan: state %s", snap.State)
	}
	snap = snapshotOf(t, do(t, router, http.MethodPost, base+"/capture/abort", nil))
	if snap.State != "result" {
		t.Fatalf("abort: state %s", snap.State)
	}

	snap = snapshotOf(t, do(t, router, http.MethodPost, base+"/cancel", nil))
	if snap.State != "idle" || snap.Result != nil {
		t.Fatalf("cancel: %+v", snap)
	}

	if resp := do(t, router, http.MethodDelete, base, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected %d, got %d", http.StatusNoContent, resp.Code)
	}
	if resp := do(t, router, http.MethodGet, base, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected %d, got %d", http.StatusNotFound, resp.Code)
	}
	if resp := do(t, router, http.MethodDelete, base, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestHistory(t *testing.T) {
	history := &stubHistory{entries: []journal.Entry{{SessionID: "s1", Denomination: "500FC", Currency: "FC", Confidence: 0.8}}}
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, history, 0)

	resp := do(t, router, http.MethodGet, "/history?limit=5", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var body struct {
		Entries []journal.Entry `json:"entries"`
	}
	decode(t, resp, &body)
	if len(body.Entries) != 1 || body.Entries[0].Denomination != "500FC" {
		t.Errorf("entries = %+v", body.Entries)
	}
	if history.limit != 5 {
		t.Errorf("limit = %d, want 5", history.limit)
	}

	if resp := do(t, router, http.MethodGet, "/history?limit=zero", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	router, _ := newRouter(t, &stubClassifier{output: highUSD()}, nil, 0)
	if resp := do(t, router, http.MethodGet, "/history", nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.Code)
	}
}
