package results

import (
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Status is the reduced verdict for one test case run.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// Result is one test case's execution outcome.
type Result struct {
	TestCaseID string  `json:"test_case_id"`
	ClassName  string  `json:"class_name"`
	Status     Status  `json:"status"`
	TimeSec    float64 `json:"time_sec"`
	Message    string  `json:"message,omitempty"`
}

// surefire XML shapes, trimmed to the fields the verdict needs.
type testSuite struct {
	XMLName xml.Name   `xml:"testsuite"`
	Name    string     `xml:"name,attr"`
	Cases   []testCase `xml:"testcase"`
}

type testCase struct {
	Name      string    `xml:"name,attr"`
	ClassName string    `xml:"classname,attr"`
	Time      float64   `xml:"time,attr"`
	Failure   *xmlFault `xml:"failure"`
	Error     *xmlFault `xml:"error"`
	Skipped   *xmlFault `xml:"skipped"`
}

type xmlFault struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// ParseReport decodes a single Surefire report.
func ParseReport(data []byte) ([]Result, error) {
	var suite testSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("decoding surefire report: %w", err)
	}
	results := make([]Result, 0, len(suite.Cases))
	for _, tc := range suite.Cases {
		class := tc.ClassName
		if class == "" {
			class = suite.Name
		}
		results = append(results, Result{
			TestCaseID: TestCaseIDForClass(class),
			ClassName:  class,
			Status:     verdict(tc),
			TimeSec:    tc.Time,
			Message:    faultMessage(tc),
		})
	}
	return results, nil
}

// ParseReportDir reads every TEST-*.xml report under dir.
func ParseReportDir(dir string) ([]Result, error) {
	var all []Result
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "TEST-") || !strings.HasSuffix(name, ".xml") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading report %s: %w", name, err)
		}
		results, err := ParseReport(data)
		if err != nil {
			return fmt.Errorf("report %s: %w", name, err)
		}
		all = append(all, results...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// TestCaseIDForClass inverts the TC_<id>Test naming convention,
// e.g. TC_1A2B3CTest maps back to TC-1A2B3C. Package qualifiers are
// stripped first.
func TestCaseIDForClass(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		class = class[i+1:]
	}
	class = strings.TrimSuffix(class, "Test")
	return strings.ReplaceAll(class, "_", "-")
}

func verdict(tc testCase) Status {
	switch {
	case tc.Error != nil:
		return StatusError
	case tc.Failure != nil:
		return StatusFail
	case tc.Skipped != nil:
		return StatusSkipped
	default:
		return StatusPass
	}
}

func faultMessage(tc testCase) string {
	for _, f := range []*xmlFault{tc.Error, tc.Failure, tc.Skipped} {
		if f == nil {
			continue
		}
		if f.Message != "" {
			return f.Message
		}
		return strings.TrimSpace(f.Body)
	}
	return ""
}
