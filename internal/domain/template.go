package domain

import (
	"fmt"
	"time"
)

// TemplateStatus represents the publication state of a template
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "DRAFT"
	TemplateStatusPublished TemplateStatus = "PUBLISHED"
	TemplateStatusArchived  TemplateStatus = "ARCHIVED"
)

// Template is a versioned container of standards (ISO 27001, COBIT, ...)
type Template struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Status    TemplateStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsEditable reports whether standards and weights may still change
func (t *Template) IsEditable() bool {
	return t.Status == TemplateStatusDraft
}

// EnsureEditable guards standard tree mutations
func (t *Template) EnsureEditable() error {
	if !t.IsEditable() {
		return ErrTemplateNotEditable.For(t.ID).With("status is " + string(t.Status))
	}
	return nil
}

// EnsurePublished gates audit creation
func (t *Template) EnsurePublished() error {
	if t.Status != TemplateStatusPublished {
		return ErrTemplateNotPublished.For(t.ID).With("status is " + string(t.Status))
	}
	return nil
}

// MaturityTier is a named level of a scoring framework
type MaturityTier struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// ScoringFramework bounds the maturity levels an evaluation can reach
type ScoringFramework struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	MinLevel int            `json:"min_level"`
	MaxLevel int            `json:"max_level"`
	Tiers    []MaturityTier `json:"tiers,omitempty"`
}

// DefaultScoringFramework is used when an audit has no framework attached
func DefaultScoringFramework() *ScoringFramework {
	return &ScoringFramework{
		Name:     "CMMI",
		MinLevel: 0,
		MaxLevel: 5,
		Tiers: []MaturityTier{
			{Level: 0, Name: "Non-existent"},
			{Level: 1, Name: "Initial"},
			{Level: 2, Name: "Managed"},
			{Level: 3, Name: "Defined"},
			{Level: 4, Name: "Quantitatively Managed"},
			{Level: 5, Name: "Optimizing"},
		},
	}
}

// ValidateLevel fails with ErrOutOfRange when level is outside the framework bounds
func (f *ScoringFramework) ValidateLevel(level int) error {
	if level < f.MinLevel || level > f.MaxLevel {
		return ErrOutOfRange.With(fmt.Sprintf("maturity level %d must be between %d and %d", level, f.MinLevel, f.MaxLevel))
	}
	return nil
}

// TierFor returns the highest tier reached by an average maturity level
func (f *ScoringFramework) TierFor(average float64) (MaturityTier, bool) {
	var (
		best  MaturityTier
		found bool
	)
	for _, tier := range f.Tiers {
		if float64(tier.Level) <= average+1e-9 && (!found || tier.Level > best.Level) {
			best = tier
			found = true
		}
	}
	return best, found
}
