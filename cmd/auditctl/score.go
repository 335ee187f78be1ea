package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// responsesFile is an offline evaluation sheet scored without a server
type responsesFile struct {
	Framework *frameworkDoc   `yaml:"framework"`
	Responses []responseEntry `yaml:"responses"`
}

type frameworkDoc struct {
	Name     string         `yaml:"name"`
	MinLevel int            `yaml:"min_level"`
	MaxLevel int            `yaml:"max_level"`
	Tiers    map[int]string `yaml:"tiers"`
}

type responseEntry struct {
	Standard        string   `yaml:"standard"`
	Weight          float64  `yaml:"weight"`
	Status          string   `yaml:"status"`
	Score           *float64 `yaml:"score"`
	ComplianceLevel string   `yaml:"compliance_level"`
	MaturityLevel   *int     `yaml:"maturity_level"`
}

func newScoreCmd(flags *globalFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "score [audit-id]",
		Short: "Show the weighted score and maturity of an audit",
		Long: `Fetch the live scoring summary of an audit from the server, or compute it
offline from a YAML evaluation sheet with --file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(flags.format); err != nil {
				return err
			}

			var (
				summary *domain.ScoreSummary
				err     error
			)
			switch {
			case file != "" && len(args) == 0:
				summary, err = scoreFile(file, cmd.ErrOrStderr())
			case file == "" && len(args) == 1:
				summary = &domain.ScoreSummary{}
				client := newAPIClient(flags.server, flags.token)
				path := "/api/v1/audits/" + url.PathEscape(args[0]) + "/summary"
				if callErr := client.do(context.Background(), "GET", path, nil, summary); callErr != nil {
					err = codeError(4, "%s", callErr)
				}
			default:
				return codeError(2, "pass either an audit id or --file, not both")
			}
			if err != nil {
				return err
			}
			return renderSummary(cmd.OutOrStdout(), flags.format, summary)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML evaluation sheet to score offline")
	return cmd
}

func scoreFile(path string, warn io.Writer) (*domain.ScoreSummary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, codeError(2, "reading responses file: %s", err)
	}
	var f responsesFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, codeError(2, "parsing responses file: %s", err)
	}

	framework := f.Framework.toDomain()
	responses, err := buildResponses(f.Responses, framework)
	if err != nil {
		return nil, codeError(3, "%s", err)
	}
	if err := domain.ValidateWeightSum(domain.ResponseWeights(responses)); err != nil {
		fmt.Fprintf(warn, "WARN: %s\n", err)
	}

	summary := domain.Summarize(responses, framework)
	return &summary, nil
}

func (d *frameworkDoc) toDomain() *domain.ScoringFramework {
	if d == nil {
		return domain.DefaultScoringFramework()
	}
	f := &domain.ScoringFramework{Name: d.Name, MinLevel: d.MinLevel, MaxLevel: d.MaxLevel}
	for level := d.MinLevel; level <= d.MaxLevel; level++ {
		if name, ok := d.Tiers[level]; ok {
			f.Tiers = append(f.Tiers, domain.MaturityTier{Level: level, Name: name})
		}
	}
	return f
}

// buildResponses validates each sheet entry the way the server validates an
// evaluation update, then applies its status.
func buildResponses(entries []responseEntry, framework *domain.ScoringFramework) ([]*domain.AuditResponse, error) {
	if len(entries) == 0 {
		return nil, domain.ErrInvalidInput.With("responses file lists no responses")
	}

	out := make([]*domain.AuditResponse, 0, len(entries))
	for i, e := range entries {
		id := e.Standard
		if id == "" {
			id = fmt.Sprintf("row-%d", i+1)
		}
		r := domain.NewAuditResponse("offline", &domain.Standard{ID: id, Weight: e.Weight})
		r.ID = id

		update := domain.ResponseUpdate{Score: e.Score, AchievedMaturityLevel: e.MaturityLevel}
		if e.ComplianceLevel != "" {
			level := domain.ComplianceLevel(strings.ToUpper(e.ComplianceLevel))
			update.ComplianceLevel = &level
		}
		if !update.IsEmpty() {
			if err := r.ApplyUpdate(update, framework); err != nil {
				return nil, err
			}
		}

		switch status := domain.ResponseStatus(strings.ToUpper(e.Status)); status {
		case "", domain.ResponseStatusNotStarted:
		case domain.ResponseStatusInProgress:
			r.Status = domain.ResponseStatusInProgress
		case domain.ResponseStatusCompleted, domain.ResponseStatusReviewed:
			if err := r.MarkCompleted(); err != nil {
				return nil, err
			}
			if status == domain.ResponseStatusReviewed {
				if err := r.MarkReviewed("offline", time.Now()); err != nil {
					return nil, err
				}
			}
		default:
			return nil, domain.ErrInvalidInput.For(id).With(fmt.Sprintf("unknown status %q", e.Status))
		}
		out = append(out, r)
	}
	return out, nil
}

func renderSummary(out io.Writer, format string, s *domain.ScoreSummary) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(out, "overall score:    %.2f\n", s.OverallScore)
	if s.AverageMaturityLevel != nil {
		tier := ""
		if s.MaturityTier != nil {
			tier = fmt.Sprintf(" (%s)", s.MaturityTier.Name)
		}
		fmt.Fprintf(out, "maturity level:   %.2f%s\n", *s.AverageMaturityLevel, tier)
	} else {
		fmt.Fprintf(out, "maturity level:   -\n")
	}
	fmt.Fprintf(out, "total weight:     %.2f\n", s.TotalWeight)
	fmt.Fprintf(out, "progress:         %d/%d done (%.2f%%)\n",
		s.Progress.Completed+s.Progress.Reviewed, s.Progress.Total, s.Progress.PercentageComplete)

	c := s.Compliance
	fmt.Fprintf(out, "compliance:\n")
	for _, row := range []struct {
		name string
		stat domain.LevelStat
	}{
		{"compliant", c.Compliant},
		{"partially compliant", c.PartiallyCompliant},
		{"non compliant", c.NonCompliant},
		{"not applicable", c.NotApplicable},
		{"not evaluated", c.NotEvaluated},
	} {
		fmt.Fprintf(out, "  %-20s %3d  %6.2f%%\n", row.name, row.stat.Count, row.stat.Percentage)
	}
	return nil
}
