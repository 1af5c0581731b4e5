package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// Sample is the canonical input/expected pair attached to a generated test.
type Sample struct {
	TestCaseID string         `json:"test_case_id"`
	Input      map[string]any `json:"input"`
	Expected   map[string]any `json:"expected"`
}

// defaultSample mirrors the dosing scenario the generated JUnit sources assert.
func defaultSample(tcID string) Sample {
	return Sample{
		TestCaseID: tcID,
		Input: map[string]any{
			"glucose": 180,
			"dose":    2,
		},
		Expected: map[string]any{
			"delivery_logged": true,
		},
	}
}

// Generator produces sample data and JUnit sources for test cases and
// persists them to the blob store, mirroring samples into a local
// resources directory for the test runner to pick up.
type Generator struct {
	store     BlobStore
	mirrorDir string
	logger    *zap.Logger
}

// NewGenerator creates a Generator. mirrorDir may be empty to disable
// the local mirror.
func NewGenerator(store BlobStore, mirrorDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, mirrorDir: mirrorDir, logger: logger}
}

// Output describes the artifacts produced for one request.
type Output struct {
	SampleRefs []string
	JUnitRefs  []string
}

// Generate writes one sample JSON and one JUnit source per test case.
func (g *Generator) Generate(ctx context.Context, reqID string, cases []testgen.TestCase) (*Output, error) {
	out := &Output{}
	for _, tc := range cases {
		sampleRef, err := g.writeSample(ctx, reqID, tc.TestCaseID)
		if err != nil {
			return nil, err
		}
		junitRef, err := g.writeJUnit(ctx, reqID, tc)
		if err != nil {
			return nil, err
		}
		out.SampleRefs = append(out.SampleRefs, sampleRef)
		out.JUnitRefs = append(out.JUnitRefs, junitRef)
	}
	g.logger.Info("generated stage artifacts",
		zap.String("req_id", reqID),
		zap.Int("samples", len(out.SampleRefs)),
		zap.Int("junit_sources", len(out.JUnitRefs)))
	return out, nil
}

func (g *Generator) writeSample(ctx context.Context, reqID, tcID string) (string, error) {
	sample := defaultSample(tcID)
	content, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding sample for %s: %w", tcID, err)
	}
	path := fmt.Sprintf("artifacts/samples/%s/%s.json", reqID, tcID)
	ref, err := g.store.Put(ctx, path, content, "application/json")
	if err != nil {
		return "", fmt.Errorf("storing sample for %s: %w", tcID, err)
	}
	if g.mirrorDir != "" {
		if err := g.mirror(tcID+".json", content); err != nil {
			return "", err
		}
	}
	return ref, nil
}

// mirror copies a sample into the local resources directory so the
// generated tests can load it from the classpath.
func (g *Generator) mirror(name string, content []byte) error {
	if err := os.MkdirAll(g.mirrorDir, 0o755); err != nil {
		return fmt.Errorf("creating sample mirror dir: %w", err)
	}
	dst := filepath.Join(g.mirrorDir, name)
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("mirroring sample %s: %w", name, err)
	}
	return nil
}
