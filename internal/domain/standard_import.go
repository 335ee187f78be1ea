package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StandardImportRow is one proposed standard handed over by an importer.
// Hierarchy is expressed through ParentCode instead of identifiers. A row
// without is_active is imported active, matching NewStandard.
type StandardImportRow struct {
	Code         string  `json:"code" yaml:"code"`
	ParentCode   string  `json:"parent_code,omitempty" yaml:"parent_code,omitempty"`
	Title        string  `json:"title" yaml:"title"`
	Description  string  `json:"description,omitempty" yaml:"description,omitempty"`
	DisplayOrder int     `json:"display_order" yaml:"display_order"`
	IsAuditable  bool    `json:"is_auditable" yaml:"is_auditable"`
	IsActive     *bool   `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Weight       float64 `json:"weight" yaml:"weight"`
}

// PlanStandardImport turns a flat batch into standards ready to insert, in
// ascending level order so parents always precede their children. existing
// holds the template's current standards; the weight invariant is checked
// over existing and imported scored standards together.
func PlanStandardImport(templateID string, rows []StandardImportRow, existing []*Standard) ([]*Standard, error) {
	if len(rows) == 0 {
		return nil, ErrInvalidInput.With("import batch is empty")
	}
	rows = append([]StandardImportRow(nil), rows...)

	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s.Code] = true
	}

	byCode := make(map[string]*StandardImportRow, len(rows))
	for i := range rows {
		row := &rows[i]
		row.Code = strings.TrimSpace(row.Code)
		row.ParentCode = strings.TrimSpace(row.ParentCode)
		if row.Code == "" {
			return nil, ErrInvalidInput.With(fmt.Sprintf("row %d has no code", i+1))
		}
		if math.IsNaN(row.Weight) || row.Weight < 0 || row.Weight > WeightTotal {
			return nil, ErrOutOfRange.For(row.Code).With(fmt.Sprintf("weight %v must be between 0 and 100", row.Weight))
		}
		if taken[row.Code] {
			return nil, ErrDuplicateStandardCode.For(row.Code)
		}
		if _, dup := byCode[row.Code]; dup {
			return nil, ErrDuplicateStandardCode.For(row.Code).With("duplicated within import batch")
		}
		byCode[row.Code] = row
	}

	for _, row := range rows {
		if row.ParentCode == "" {
			continue
		}
		if _, ok := byCode[row.ParentCode]; !ok {
			return nil, ErrUnresolvedParent.For(row.Code).With("parent code " + row.ParentCode)
		}
	}

	levels := make(map[string]int, len(rows))
	for _, row := range rows {
		level, err := importLevel(row.Code, byCode)
		if err != nil {
			return nil, err
		}
		levels[row.Code] = level
	}

	ordered := make([]StandardImportRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return levels[ordered[i].Code] < levels[ordered[j].Code]
	})

	now := time.Now()
	created := make(map[string]*Standard, len(ordered))
	planned := make([]*Standard, 0, len(ordered))
	for _, row := range ordered {
		s := &Standard{
			ID:           uuid.NewString(),
			TemplateID:   templateID,
			Code:         row.Code,
			Title:        row.Title,
			Description:  row.Description,
			DisplayOrder: row.DisplayOrder,
			IsAuditable:  row.IsAuditable,
			IsActive:     row.IsActive == nil || *row.IsActive,
			Weight:       row.Weight,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		var parent *Standard
		if row.ParentCode != "" {
			parent = created[row.ParentCode]
		}
		if err := s.AttachTo(parent); err != nil {
			return nil, err
		}
		created[s.Code] = s
		planned = append(planned, s)
	}

	combined := append(append([]*Standard(nil), existing...), planned...)
	if err := ValidateWeightSum(StandardWeights(ScoredStandards(combined))); err != nil {
		return nil, err
	}

	return planned, nil
}

// importLevel walks the parent chain of code; revisiting a node is a cycle
func importLevel(code string, byCode map[string]*StandardImportRow) (int, error) {
	visited := map[string]bool{}
	level := 1
	current := byCode[code]
	for {
		visited[current.Code] = true
		if current.ParentCode == "" {
			return level, nil
		}
		if visited[current.ParentCode] {
			return 0, ErrCircularReference.For(code).With("via " + current.ParentCode)
		}
		current = byCode[current.ParentCode]
		level++
	}
}
