package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Standard is a control or clause node of a template's hierarchy
type Standard struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"template_id"`
	ParentID     *string   `json:"parent_id,omitempty"`
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Level        int       `json:"level"`
	IsAuditable  bool      `json:"is_auditable"`
	IsActive     bool      `json:"is_active"`
	Weight       float64   `json:"weight"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewStandard creates a root standard; use AttachTo to place it under a parent
func NewStandard(templateID, code, title string) *Standard {
	now := time.Now()
	return &Standard{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Code:       code,
		Title:      title,
		Level:      1,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AttachTo places the standard under parent, or at the root when parent is nil
func (s *Standard) AttachTo(parent *Standard) error {
	if parent == nil {
		s.ParentID = nil
		s.Level = 1
		return nil
	}
	if parent.TemplateID != s.TemplateID {
		return ErrParentNotFound.For(parent.ID).With("parent belongs to another template")
	}
	if parent.ID == s.ID {
		return ErrCircularReference.For(s.ID)
	}
	parentID := parent.ID
	s.ParentID = &parentID
	s.Level = parent.Level + 1
	return nil
}

// IsScored reports whether the standard contributes weight and gets a response
func (s *Standard) IsScored() bool {
	return s.IsAuditable && s.IsActive
}

// SortStandards orders standards by level, display order, then code
func SortStandards(standards []*Standard) {
	sort.SliceStable(standards, func(i, j int) bool {
		a, b := standards[i], standards[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Code < b.Code
	})
}

// ScoredStandards returns the auditable, active standards in display order
func ScoredStandards(standards []*Standard) []*Standard {
	var scored []*Standard
	for _, s := range standards {
		if s.IsScored() {
			scored = append(scored, s)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].DisplayOrder != scored[j].DisplayOrder {
			return scored[i].DisplayOrder < scored[j].DisplayOrder
		}
		return scored[i].Code < scored[j].Code
	})
	return scored
}

// StandardWeights extracts the weights of standards in order
func StandardWeights(standards []*Standard) []float64 {
	weights := make([]float64, len(standards))
	for i, s := range standards {
		weights[i] = s.Weight
	}
	return weights
}

// StandardTree indexes a template's standards by identifier. Nodes never
// hold references to each other; every walk goes through the index.
type StandardTree struct {
	byID     map[string]*Standard
	byCode   map[string]*Standard
	children map[string][]string
	roots    []string
}

// NewStandardTree builds a tree over standards of a single template
func NewStandardTree(standards []*Standard) *StandardTree {
	t := &StandardTree{
		byID:     make(map[string]*Standard, len(standards)),
		byCode:   make(map[string]*Standard, len(standards)),
		children: make(map[string][]string),
	}

	sorted := make([]*Standard, len(standards))
	copy(sorted, standards)
	SortStandards(sorted)

	for _, s := range sorted {
		t.byID[s.ID] = s
		t.byCode[s.Code] = s
		if s.ParentID == nil {
			t.roots = append(t.roots, s.ID)
			continue
		}
		t.children[*s.ParentID] = append(t.children[*s.ParentID], s.ID)
	}
	return t
}

// Len returns the number of nodes
func (t *StandardTree) Len() int {
	return len(t.byID)
}

// Get looks up a standard by ID
func (t *StandardTree) Get(id string) (*Standard, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// GetByCode looks up a standard by its template-scoped code
func (t *StandardTree) GetByCode(code string) (*Standard, bool) {
	s, ok := t.byCode[code]
	return s, ok
}

// Roots returns the top-level standards
func (t *StandardTree) Roots() []*Standard {
	return t.resolve(t.roots)
}

// Children returns the direct children of id, active or not
func (t *StandardTree) Children(id string) []*Standard {
	return t.resolve(t.children[id])
}

// HasChildren reports whether id has any child regardless of its active state
func (t *StandardTree) HasChildren(id string) bool {
	return len(t.children[id]) > 0
}

func (t *StandardTree) resolve(ids []string) []*Standard {
	out := make([]*Standard, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.byID[id])
	}
	return out
}

// Ancestors walks the parent chain of id, nearest parent first. It fails on
// a dangling parent reference or when a node is revisited.
func (t *StandardTree) Ancestors(id string) ([]*Standard, error) {
	node, ok := t.byID[id]
	if !ok {
		return nil, ErrStandardNotFound.For(id)
	}

	visited := map[string]bool{node.ID: true}
	var chain []*Standard
	for node.ParentID != nil {
		parent, ok := t.byID[*node.ParentID]
		if !ok {
			return nil, ErrParentNotFound.For(*node.ParentID)
		}
		if visited[parent.ID] {
			return nil, ErrCircularReference.For(id)
		}
		visited[parent.ID] = true
		chain = append(chain, parent)
		node = parent
	}
	return chain, nil
}

// ComputeLevel derives the level of id from its ancestry
func (t *StandardTree) ComputeLevel(id string) (int, error) {
	ancestors, err := t.Ancestors(id)
	if err != nil {
		return 0, err
	}
	return len(ancestors) + 1, nil
}

// VerifyLevels checks level == parent.level + 1 (1 for roots) across the tree
func (t *StandardTree) VerifyLevels() error {
	for id, s := range t.byID {
		level, err := t.ComputeLevel(id)
		if err != nil {
			return err
		}
		if level != s.Level {
			return ErrInvalidInput.For(id).With(fmt.Sprintf("level is %d, expected %d", s.Level, level))
		}
	}
	return nil
}

// WouldCycle reports whether re-parenting id under parentID would create a cycle
func (t *StandardTree) WouldCycle(id, parentID string) bool {
	if id == parentID {
		return true
	}
	ancestors, err := t.Ancestors(parentID)
	if err != nil {
		return true
	}
	for _, a := range ancestors {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Scored returns the auditable, active standards of the tree in display order
func (t *StandardTree) Scored() []*Standard {
	all := make([]*Standard, 0, len(t.byID))
	for _, s := range t.byID {
		all = append(all, s)
	}
	return ScoredStandards(all)
}
