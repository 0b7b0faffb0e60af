package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHTTPDetectorDetect(t *testing.T) {
	want := []RawDetection{
		{Type: "keypoint", Label: "nose", X: 12, Y: 34, Confidence: 0.91},
		{Type: "bbox", Label: "animal", X: 0, Y: 0, Confidence: 0.99},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	det := NewHTTPDetector(server.URL, "hrnet-v2", 5*time.Second)
	got, err := det.Detect(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 2 || got[0].Label != "nose" || got[1].Type != "bbox" {
		t.Errorf("detections = %+v", got)
	}
	if det.ModelVersion() != "hrnet-v2" {
		t.Errorf("version = %q", det.ModelVersion())
	}
}

func TestHTTPDetectorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	det := NewHTTPDetector(server.URL, "hrnet-v2", 5*time.Second)
	_, err := det.Detect(context.Background(), writeTestImage(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFailure(err) {
		t.Errorf("server error must be a retryable failure: %v", err)
	}
}

func TestHTTPDetectorMissingFile(t *testing.T) {
	det := NewHTTPDetector("http://localhost:0", "hrnet-v2", time.Second)
	_, err := det.Detect(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !IsFailure(err) {
		t.Fatalf("expected FailureError, got %v", err)
	}
}

func TestIsFailure(t *testing.T) {
	fe := &FailureError{Path: "a.jpg", Err: errors.New("boom")}
	if !IsFailure(fe) {
		t.Error("direct FailureError not recognized")
	}
	if !IsFailure(fmt.Errorf("attempt 2: %w", fe)) {
		t.Error("wrapped FailureError not recognized")
	}
	if IsFailure(errors.New("plain")) {
		t.Error("plain error misclassified")
	}
	if !errors.Is(fe, fe.Err) {
		t.Error("FailureError must unwrap to its cause")
	}
}

func TestStubScript(t *testing.T) {
	stub := &Stub{
		Results: [][]RawDetection{
			{{Label: "nose", Confidence: 0.5}},
			{{Label: "nose", Confidence: 0.9}},
		},
		Errs: []error{
			&FailureError{Path: "x", Err: errors.New("first call fails")},
			nil,
		},
	}

	if _, err := stub.Detect(context.Background(), "x"); !IsFailure(err) {
		t.Fatalf("first call: err = %v, want failure", err)
	}
	got, err := stub.Detect(context.Background(), "x")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(got) != 1 || got[0].Confidence != 0.9 {
		t.Errorf("second call result = %+v", got)
	}
	// Past the end of the script the last entry repeats.
	if _, err := stub.Detect(context.Background(), "x"); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if stub.Calls != 3 {
		t.Errorf("calls = %d, want 3", stub.Calls)
	}
}
