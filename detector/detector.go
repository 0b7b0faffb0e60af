// Package detector defines the boundary to the external pose-detection
// model. The workflow core only depends on the Detector interface; the
// HTTP client talks to a model server and the stub backs tests.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// RawDetection is one detected point as returned by the model service.
type RawDetection struct {
	Type       string                 `json:"type"`
	Label      string                 `json:"label"`
	X          float64                `json:"x"`
	Y          float64                `json:"y"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Detector runs the pose model against a stored image. An empty result is
// valid; model or input errors are reported as a *FailureError.
type Detector interface {
	Detect(ctx context.Context, path string) ([]RawDetection, error)
	ModelVersion() string
}

// FailureError marks a detection attempt that failed in the model or its
// input, as opposed to workflow-level errors. It is retryable up to a bound.
type FailureError struct {
	Path string
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("detection failed for %s: %v", e.Path, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// IsFailure reports whether err represents a detection failure.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}

// HTTPDetector posts image bytes to a model server and decodes the
// detection list from its JSON response.
type HTTPDetector struct {
	URL     string
	Version string
	Client  *http.Client
}

// NewHTTPDetector builds a detector client for the given model server.
func NewHTTPDetector(url, version string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		URL:     url,
		Version: version,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDetector) ModelVersion() string { return d.Version }

// Detect sends the stored image to the model server.
func (d *HTTPDetector) Detect(ctx context.Context, path string) ([]RawDetection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FailureError{Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(data))
	if err != nil {
		return nil, &FailureError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, &FailureError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FailureError{Path: path, Err: fmt.Errorf("model server returned %d: %s", resp.StatusCode, body)}
	}

	var detections []RawDetection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		return nil, &FailureError{Path: path, Err: err}
	}
	return detections, nil
}

// Stub is a scripted detector for tests. Results and errors are consumed
// per call in order; the last entry repeats once the script runs out.
type Stub struct {
	Results [][]RawDetection
	Errs    []error
	Calls   int
	Version string

	mu sync.Mutex
}

func (s *Stub) ModelVersion() string {
	if s.Version == "" {
		return "stub"
	}
	return s.Version
}

func (s *Stub) Detect(ctx context.Context, path string) ([]RawDetection, error) {
	s.mu.Lock()
	idx := s.Calls
	s.Calls++
	s.mu.Unlock()

	if len(s.Errs) > 0 {
		ei := idx
		if ei >= len(s.Errs) {
			ei = len(s.Errs) - 1
		}
		if err := s.Errs[ei]; err != nil {
			return nil, err
		}
	}
	if len(s.Results) == 0 {
		return nil, nil
	}
	ri := idx
	if ri >= len(s.Results) {
		ri = len(s.Results) - 1
	}
	return s.Results[ri], nil
}
