package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	httpadapter "github.com/auditflow/auditflow/internal/adapter/http"
	"github.com/auditflow/auditflow/internal/adapter/memory"
	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs auditctl with args and returns stdout, stderr and the error
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *exitErr
	require.True(t, errors.As(err, &ee), "expected exitErr, got %v", err)
	return ee.code
}

func TestWeights_Text(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"equal", []string{"weights", "equal", "3"}, "weights: 33.33 33.33 33.34"},
		{"normalize", []string{"weights", "normalize", "1", "1", "2"}, "weights: 25.00 25.00 50.00"},
		{"redistribute", []string{"weights", "redistribute", "--index", "0", "40,30,30"}, "weights: 50.00 50.00"},
		{"change", []string{"weights", "change", "--index", "0", "--to", "80", "50", "30", "20"}, "weights: 80.00 15.00 5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "sum:     100.00")
			assert.Contains(t, out, "valid:   true")
		})
	}
}

func TestWeights_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "weights", "equal", "4")
	require.NoError(t, err)

	var result weightResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []float64{25, 25, 25, 25}, result.Weights)
	assert.True(t, result.Valid)
}

func TestWeights_Errors(t *testing.T) {
	t.Run("bad count", func(t *testing.T) {
		_, _, err := execute(t, "weights", "equal", "many")
		assert.Equal(t, 2, exitCode(t, err))
	})

	t.Run("zero count", func(t *testing.T) {
		_, _, err := execute(t, "weights", "equal", "0")
		assert.Equal(t, 3, exitCode(t, err))
	})

	t.Run("bad weight", func(t *testing.T) {
		_, _, err := execute(t, "weights", "normalize", "10", "abc")
		assert.Equal(t, 2, exitCode(t, err))
	})

	t.Run("index out of range", func(t *testing.T) {
		_, _, err := execute(t, "weights", "redistribute", "--index", "5", "50", "50")
		assert.Equal(t, 3, exitCode(t, err))
	})

	t.Run("unbalanced validate", func(t *testing.T) {
		out, _, err := execute(t, "weights", "validate", "40", "50")
		assert.Equal(t, 3, exitCode(t, err))
		assert.Contains(t, out, "valid:   false")
	})

	t.Run("bad format", func(t *testing.T) {
		_, _, err := execute(t, "--format", "xml", "weights", "equal", "2")
		assert.Equal(t, 2, exitCode(t, err))
	})
}

const importYAML = `template: tpl-draft
standards:
  - code: H.2
    parent_code: H
    title: Second control
    display_order: 2
    is_auditable: true
    is_active: true
    weight: 75
  - code: H
    title: Heading
    display_order: 1
  - code: H.1
    parent_code: H
    title: First control
    display_order: 1
    is_auditable: true
    weight: 25
`

func TestImport_DryRun(t *testing.T) {
	path := writeTemp(t, "standards.yaml", importYAML)

	out, _, err := execute(t, "import", "--dry-run", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "H "), lines[1])
	assert.Contains(t, lines[2], "H.2")
	assert.Contains(t, lines[2], "75.00")
	assert.Contains(t, lines[3], "H.1")
	assert.Equal(t, "3 standards, scored weight 100.00", lines[4])
}

func TestImport_DryRunRejectsUnbalanced(t *testing.T) {
	path := writeTemp(t, "standards.yaml", strings.Replace(importYAML, "weight: 75", "weight: 70", 1))

	_, _, err := execute(t, "import", "--dry-run", path)
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(t, err))
	assert.True(t, strings.Contains(err.Error(), "100"), err.Error())
}

func TestImport_DryRunRejectsNaNWeight(t *testing.T) {
	path := writeTemp(t, "standards.yaml", strings.Replace(importYAML, "weight: 75", "weight: .nan", 1))

	_, _, err := execute(t, "import", "--dry-run", path)
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(t, err))
}

func TestImport_RejectsUnknownFields(t *testing.T) {
	path := writeTemp(t, "standards.yaml", "standards:\n  - code: A\n    wieght: 10\n")

	_, _, err := execute(t, "import", "--dry-run", "--template", "t", path)
	assert.Equal(t, 2, exitCode(t, err))
}

func TestImport_RequiresTemplate(t *testing.T) {
	path := writeTemp(t, "standards.yaml", "standards:\n  - code: A\n    weight: 100\n")

	_, _, err := execute(t, "import", "--dry-run", path)
	assert.Equal(t, 2, exitCode(t, err))
}

func TestImport_ThroughServer(t *testing.T) {
	store := memory.NewStore()
	store.PutTemplate(domain.Template{ID: "tpl-draft", Code: "DRAFT", Name: "Draft", Version: "1", Status: domain.TemplateStatusDraft})

	uc := httpadapter.UseCases{
		Audits:    usecase.NewAuditUseCase(store, nil, nil),
		Responses: usecase.NewResponseUseCase(store, nil, nil),
		Standards: usecase.NewStandardUseCase(store, nil, nil),
		Scoring:   usecase.NewScoringUseCase(store, nil),
	}
	srv := httptest.NewServer(httpadapter.NewServer(httpadapter.ServerConfig{Port: "0"}, uc, httpadapter.Options{}).Handler())
	defer srv.Close()

	path := writeTemp(t, "standards.yaml", importYAML)

	out, _, err := execute(t, "--server", srv.URL, "--format", "json", "import", path)
	require.NoError(t, err)

	var created []*domain.Standard
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.Len(t, created, 3)
	assert.Equal(t, "H", created[0].Code)

	stored := store.Repositories()
	list, err := stored.Standards.ListByTemplate(context.Background(), "tpl-draft")
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, s := range list {
		assert.True(t, s.IsActive, "%s imported without is_active", s.Code)
	}

	// importing the same batch again collides on codes
	_, _, err = execute(t, "--server", srv.URL, "import", path)
	require.Error(t, err)
	assert.Equal(t, 4, exitCode(t, err))
	assert.Contains(t, err.Error(), "409")
}

const responsesYAML = `responses:
  - standard: A.1
    weight: 40
    status: completed
    score: 80
    compliance_level: compliant
    maturity_level: 3
  - standard: A.2
    weight: 60
    status: reviewed
    score: 50
    compliance_level: PARTIALLY_COMPLIANT
    maturity_level: 2
`

func TestScore_OfflineFile(t *testing.T) {
	path := writeTemp(t, "responses.yaml", responsesYAML)

	out, _, err := execute(t, "--format", "json", "score", "--file", path)
	require.NoError(t, err)

	var summary domain.ScoreSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 62.0, summary.OverallScore)
	require.NotNil(t, summary.AverageMaturityLevel)
	assert.Equal(t, 2.4, *summary.AverageMaturityLevel)
	require.NotNil(t, summary.MaturityTier)
	assert.Equal(t, "Managed", summary.MaturityTier.Name)
	assert.Equal(t, 1, summary.Progress.Completed)
	assert.Equal(t, 1, summary.Progress.Reviewed)
	assert.True(t, summary.Complete)
	assert.Equal(t, 50.0, summary.Compliance.Compliant.Percentage)
}

func TestScore_OfflineTextAndWarnings(t *testing.T) {
	sheet := `framework:
  name: three
  min_level: 1
  max_level: 3
  tiers:
    1: Ad hoc
    2: Repeatable
    3: Defined
responses:
  - standard: A.1
    weight: 40
    score: 100
    maturity_level: 2
  - standard: A.2
    weight: 50
`
	path := writeTemp(t, "responses.yaml", sheet)

	out, errOut, err := execute(t, "score", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "overall score:    40.00")
	assert.Contains(t, out, "maturity level:   2.00 (Repeatable)")
	assert.Contains(t, out, "progress:         0/2 done")
	assert.Contains(t, errOut, "WARN:")
}

func TestScore_OfflineValidation(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
	}{
		{"score out of range", "responses:\n  - standard: A\n    weight: 100\n    score: 120\n"},
		{"maturity out of range", "responses:\n  - standard: A\n    weight: 100\n    maturity_level: 9\n"},
		{"completed without verdict", "responses:\n  - standard: A\n    weight: 100\n    score: 10\n    status: completed\n"},
		{"unknown status", "responses:\n  - standard: A\n    weight: 100\n    status: done\n"},
		{"empty sheet", "responses: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "responses.yaml", tt.sheet)
			_, _, err := execute(t, "score", "--file", path)
			assert.Equal(t, 3, exitCode(t, err))
		})
	}
}

func TestScore_FromServer(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(httpadapter.Envelope{Message: "audit not found", Code: "AUDIT_NOT_FOUND"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(httpadapter.Envelope{ //nolint:errcheck
			Status:  true,
			Message: "ok",
			Data:    domain.ScoreSummary{OverallScore: 51, Progress: domain.Progress{Total: 2, Completed: 2, PercentageComplete: 100}},
		})
	}))
	defer srv.Close()

	out, _, err := execute(t, "--server", srv.URL, "--token", "tok", "score", "aud-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/v1/audits/aud-1/summary", gotPath)
	assert.Contains(t, out, "overall score:    51.00")
	assert.Contains(t, out, "maturity level:   -")

	_, _, err = execute(t, "--server", srv.URL, "score", "missing")
	assert.Equal(t, 4, exitCode(t, err))
	assert.Contains(t, err.Error(), "AUDIT_NOT_FOUND")
}

func TestScore_ArgumentRules(t *testing.T) {
	_, _, err := execute(t, "score")
	assert.Equal(t, 2, exitCode(t, err))

	_, _, err = execute(t, "score", "aud-1", "--file", "x.yaml")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, _, err := execute(t, "token", "--subject", "auditor-7", "--ttl", "10m")
	require.NoError(t, err)

	subject, err := httpadapter.NewTokenVerifier("cli-secret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "auditor-7", subject)

	_, _, err = execute(t, "token")
	assert.Equal(t, 2, exitCode(t, err))
}
