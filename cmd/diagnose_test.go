// -- cmd/diagnose_test.go --
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/service"
)

func TestCriteriaFromFlags(t *testing.T) {
	cmd := newDiagnoseCmd()
	require.NoError(t, cmd.Flags().Set("text", "Submit"))
	require.NoError(t, cmd.Flags().Set("role", "button"))
	require.NoError(t, cmd.Flags().Set("attr", "type=submit"))

	criteria, err := criteriaFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "Submit", criteria.Text)
	assert.Equal(t, "button", criteria.Role)
	assert.Equal(t, map[string]string{"type": "submit"}, criteria.Attributes)
	assert.False(t, criteria.Empty())
}

func TestCriteriaFromFlagsEmpty(t *testing.T) {
	cmd := newDiagnoseCmd()
	criteria, err := criteriaFromFlags(cmd)
	require.NoError(t, err)
	assert.True(t, criteria.Empty())
}

func sampleReport() *service.Report {
	return &service.Report{
		Page:        schemas.PageIdentity{URL: "https://app.test", Title: "App"},
		GeneratedAt: time.Now().UTC(),
		Alternatives: []schemas.AlternativeElement{
			{Selector: "button", Confidence: 1.0, Reason: "text match: exact"},
		},
	}
}

func TestWriteReportToStdout(t *testing.T) {
	cmd := newDiagnoseCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, writeReport(cmd, sampleReport()))
	assert.Contains(t, buf.String(), `"url": "https://app.test"`)
	assert.Contains(t, buf.String(), `"selector": "button"`)
}

func TestWriteReportToFile(t *testing.T) {
	cmd := newDiagnoseCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, cmd.Flags().Set("output", path))
	require.NoError(t, writeReport(cmd, sampleReport()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"confidence": 1`)
	assert.Contains(t, buf.String(), "Report written to")
}
