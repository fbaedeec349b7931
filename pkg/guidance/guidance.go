// Package guidance defines the contract with the external AR guidance
// generator.
package guidance

import (
	"context"

	"github.com/txn2/arnav-platform/pkg/nav"
	"github.com/txn2/arnav-platform/pkg/vision"
)

// Overlay is one AR element anchored in the scene.
type Overlay struct {
	Kind     string        `json:"kind"` // arrow, label, highlight
	Anchor   nav.PathPoint `json:"anchor"`
	Text     string        `json:"text,omitempty"`
	Priority int           `json:"priority"`
}

// Guidance is a renderable AR guidance layer.
type Guidance struct {
	Overlays    []Overlay `json:"overlays"`
	Instruction string    `json:"instruction,omitempty"`
}

// Valid reports whether the guidance can be rendered.
func (g *Guidance) Valid() bool {
	return g != nil && len(g.Overlays) > 0
}

// Generator produces AR guidance from a video analysis result.
type Generator interface {
	// Generate builds the guidance layer for the analyzed scene.
	Generate(ctx context.Context, analysis *vision.AnalysisResult) (*Guidance, error)

	// Close releases resources.
	Close() error
}

// NoopGenerator is a no-op implementation for testing and standalone runs.
type NoopGenerator struct{}

// NewNoopGenerator creates a new no-op generator.
func NewNoopGenerator() *NoopGenerator {
	return &NoopGenerator{}
}

// Generate returns a single placeholder overlay at the analyzed position.
func (*NoopGenerator) Generate(_ context.Context, analysis *vision.AnalysisResult) (*Guidance, error) {
	return &Guidance{
		Overlays: []Overlay{
			{Kind: "arrow", Anchor: analysis.Position, Priority: 1},
		},
	}, nil
}

// Close does nothing.
func (*NoopGenerator) Close() error {
	return nil
}

// Verify interface compliance.
var _ Generator = (*NoopGenerator)(nil)
