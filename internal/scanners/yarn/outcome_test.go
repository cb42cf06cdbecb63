package yarn

import (
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sig = "Error: Request failed"

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name     string
		exitCode int
		output   string
		want     Outcome
	}{
		{"clean", 0, `{"type":"auditSummary","data":{}}`, OutcomeSuccess},
		{"findings", 12, `{"type":"auditAdvisory","data":{}}`, OutcomeSuccess},
		{"tool error", 1, "error An unexpected error occurred", OutcomeToolError},
		{"network error exit 1", 1, `{"type":"error","data":"Error: Request failed \"500 Internal Server Error\""}`, OutcomeNetworkError},
		{"network error exit 0", 0, "Error: Request failed", OutcomeNetworkError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ClassifyOutcome(c.exitCode, strings.NewReader(c.output), sig)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestClassifyOutcome_SignatureAcrossReads(t *testing.T) {
	out := strings.Repeat("x", 100) + sig + strings.Repeat("y", 100)
	got, err := ClassifyOutcome(0, iotest.OneByteReader(strings.NewReader(out)), sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNetworkError, got)
}

func TestClassifyOutcome_LargeOutput(t *testing.T) {
	out := strings.Repeat("a", 100<<10) + sig
	got, err := ClassifyOutcome(0, strings.NewReader(out), sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNetworkError, got)
}

func TestClassifyOutcome_EmptySignature(t *testing.T) {
	got, err := ClassifyOutcome(0, strings.NewReader(sig), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, got)
}

func TestClassifyOutcome_ReadError(t *testing.T) {
	_, err := ClassifyOutcome(0, iotest.ErrReader(assert.AnError), sig)
	assert.Error(t, err)
}
