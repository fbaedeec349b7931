// Package vision defines the contract with the external video analysis
// collaborator. Feature extraction itself runs outside this platform; the
// core only validates inputs and results.
package vision

import (
	"context"
	"time"

	"github.com/txn2/arnav-platform/pkg/nav"
)

// Frame is one video frame from a client device.
type Frame struct {
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// DetectedObject is one recognized feature in the analyzed scene.
type DetectedObject struct {
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Region     *nav.ObstacleRegion `json:"region,omitempty"`
}

// AnalysisResult is the outcome of analyzing a frame batch.
type AnalysisResult struct {
	// Position is the estimated current position derived from the frames.
	Position nav.PathPoint `json:"position"`

	// Objects are the recognized scene features.
	Objects []DetectedObject `json:"objects,omitempty"`

	// Confidence is the overall analysis confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// AnalyzedFrames is the number of frames that contributed.
	AnalyzedFrames int `json:"analyzed_frames"`
}

// Valid reports whether the result is usable for guidance generation.
func (r *AnalysisResult) Valid() bool {
	return r != nil && r.AnalyzedFrames > 0 && r.Confidence > 0
}

// Processor analyzes video frame batches. Implementations may block on
// model inference; callers must never invoke them while holding registry
// locks.
type Processor interface {
	// AnalyzeFrames extracts scene features from the frames.
	AnalyzeFrames(ctx context.Context, frames []Frame) (*AnalysisResult, error)

	// Close releases resources.
	Close() error
}

// NoopProcessor is a no-op implementation for testing and standalone runs.
type NoopProcessor struct{}

// NewNoopProcessor creates a new no-op processor.
func NewNoopProcessor() *NoopProcessor {
	return &NoopProcessor{}
}

// AnalyzeFrames returns a minimal valid result.
func (*NoopProcessor) AnalyzeFrames(_ context.Context, frames []Frame) (*AnalysisResult, error) {
	return &AnalysisResult{
		Confidence:     1,
		AnalyzedFrames: len(frames),
	}, nil
}

// Close does nothing.
func (*NoopProcessor) Close() error {
	return nil
}

// Verify interface compliance.
var _ Processor = (*NoopProcessor)(nil)
