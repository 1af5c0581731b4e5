package artifacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

// ClassName derives the Java test class name for a test case ID,
// e.g. TC-1A2B3C becomes TC_1A2B3CTest.
func ClassName(tcID string) string {
	safe := strings.ReplaceAll(tcID, "-", "_")
	return safe + "Test"
}

func (g *Generator) writeJUnit(ctx context.Context, reqID string, tc testgen.TestCase) (string, error) {
	class := ClassName(tc.TestCaseID)
	source := renderJUnit(class, tc)
	path := fmt.Sprintf("artifacts/junit/%s/%s.java", reqID, class)
	ref, err := g.store.Put(ctx, path, []byte(source), "text/x-java-source")
	if err != nil {
		return "", fmt.Errorf("storing junit source for %s: %w", tc.TestCaseID, err)
	}
	return ref, nil
}

// renderJUnit produces a JUnit 5 source skeleton carrying the test
// case's steps and expected results as comments around a sample-driven
// assertion.
func renderJUnit(class string, tc testgen.TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "import org.junit.jupiter.api.Test;\n")
	fmt.Fprintf(&b, "import static org.junit.jupiter.api.Assertions.assertTrue;\n\n")
	fmt.Fprintf(&b, "// %s: %s\n", tc.TestCaseID, tc.Title)
	fmt.Fprintf(&b, "public class %s {\n\n", class)
	fmt.Fprintf(&b, "    @Test\n")
	fmt.Fprintf(&b, "    void run() throws Exception {\n")
	for _, step := range tc.Steps {
		fmt.Fprintf(&b, "        // STEP: %s\n", sanitizeComment(step))
	}
	for _, exp := range tc.ExpectedResults {
		fmt.Fprintf(&b, "        // EXPECT: %s\n", sanitizeComment(exp))
	}
	fmt.Fprintf(&b, "        Sample sample = Sample.load(\"%s.json\");\n", tc.TestCaseID)
	fmt.Fprintf(&b, "        assertTrue(sample.run().deliveryLogged());\n")
	fmt.Fprintf(&b, "    }\n")
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

// sanitizeComment keeps model-provided text from breaking out of a
// line comment.
func sanitizeComment(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
