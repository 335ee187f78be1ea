package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// importFile is the YAML layout accepted by auditctl import:
//
//	template: <template id>
//	standards:
//	  - code: A.5
//	    title: Organizational controls
//	  - code: A.5.1
//	    parent_code: A.5
//	    weight: 40
//	    is_auditable: true
//	    is_active: true
type importFile struct {
	Template  string                     `yaml:"template"`
	Standards []domain.StandardImportRow `yaml:"standards"`
}

func loadImportFile(path string) (*importFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, codeError(2, "reading import file: %s", err)
	}
	var f importFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, codeError(2, "parsing import file: %s", err)
	}
	if len(f.Standards) == 0 {
		return nil, codeError(2, "import file %s lists no standards", path)
	}
	return &f, nil
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	var (
		templateID string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk import standards into a draft template",
		Long: `Import a hierarchy of standards from a YAML file. Parents are referenced
by code and must be part of the same file. With --dry-run the batch is only
planned locally and the resulting levels and weights are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(flags.format); err != nil {
				return err
			}
			f, err := loadImportFile(args[0])
			if err != nil {
				return err
			}
			if templateID == "" {
				templateID = f.Template
			}
			if templateID == "" {
				return codeError(2, "template id is required (--template or 'template:' in the file)")
			}

			if dryRun {
				planned, err := domain.PlanStandardImport(templateID, f.Standards, nil)
				if err != nil {
					return codeError(3, "%s", err)
				}
				return renderStandards(cmd.OutOrStdout(), flags.format, planned)
			}

			client := newAPIClient(flags.server, flags.token)
			var created []*domain.Standard
			path := "/api/v1/templates/" + url.PathEscape(templateID) + "/standards/import"
			body := map[string]interface{}{"standards": f.Standards}
			if err := client.do(context.Background(), "POST", path, body, &created); err != nil {
				return codeError(4, "%s", err)
			}
			return renderStandards(cmd.OutOrStdout(), flags.format, created)
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "target template id (overrides the file)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the import locally without calling the server")
	return cmd
}

func renderStandards(out io.Writer, format string, standards []*domain.Standard) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(standards)
	}

	byID := make(map[string]string, len(standards))
	for _, s := range standards {
		byID[s.ID] = s.Code
	}
	fmt.Fprintf(out, "%-12s %-12s %5s %8s  %s\n", "CODE", "PARENT", "LEVEL", "WEIGHT", "TITLE")
	var total float64
	for _, s := range standards {
		parent := "-"
		if s.ParentID != nil {
			if code, ok := byID[*s.ParentID]; ok {
				parent = code
			}
		}
		weight := "-"
		if s.IsScored() {
			weight = fmt.Sprintf("%.2f", s.Weight)
			total += s.Weight
		}
		fmt.Fprintf(out, "%-12s %-12s %5d %8s  %s\n", s.Code, parent, s.Level, weight, s.Title)
	}
	fmt.Fprintf(out, "%d standards, scored weight %.2f\n", len(standards), domain.Round2(total))
	return nil
}
