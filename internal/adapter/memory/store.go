// Package memory is an in-process implementation of the repository ports.
// A transaction works on a copy of the whole state that replaces the live
// state only on commit, so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/ports"
)

type state struct {
	templates   map[string]domain.Template
	frameworks  map[string]domain.ScoringFramework
	standards   map[string]domain.Standard
	audits      map[string]domain.Audit
	assignments map[string]domain.Assignment
	responses   map[string]domain.AuditResponse
}

func newState() *state {
	return &state{
		templates:   map[string]domain.Template{},
		frameworks:  map[string]domain.ScoringFramework{},
		standards:   map[string]domain.Standard{},
		audits:      map[string]domain.Audit{},
		assignments: map[string]domain.Assignment{},
		responses:   map[string]domain.AuditResponse{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.frameworks {
		c.frameworks[k] = v
	}
	for k, v := range s.standards {
		c.standards[k] = v
	}
	for k, v := range s.audits {
		c.audits[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.responses {
		c.responses[k] = v
	}
	return c
}

// Store implements ports.UnitOfWork in memory
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// PutTemplate seeds or replaces a template
func (s *Store) PutTemplate(t domain.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.templates[t.ID] = t
}

// PutFramework seeds or replaces a scoring framework
func (s *Store) PutFramework(f domain.ScoringFramework) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.frameworks[f.ID] = f
}

// Repositories returns repositories reading and writing the live state
func (s *Store) Repositories() ports.Repositories {
	return bind(&view{store: s, locked: false})
}

// WithinTx runs fn against a private copy of the state, committing it when
// fn succeeds. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := &view{store: s, locked: true, tx: s.state.clone()}
	if err := fn(bind(v)); err != nil {
		return err
	}
	s.state = v.tx
	return nil
}

// view resolves the state a repository call works on
type view struct {
	store  *Store
	locked bool
	tx     *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.locked {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func bind(v *view) ports.Repositories {
	return ports.Repositories{
		Templates:   templateRepo{v},
		Frameworks:  frameworkRepo{v},
		Standards:   standardRepo{v},
		Audits:      auditRepo{v},
		Assignments: assignmentRepo{v},
		Responses:   responseRepo{v},
	}
}

type templateRepo struct{ v *view }

func (r templateRepo) FindByID(_ context.Context, id string) (*domain.Template, error) {
	var out *domain.Template
	err := r.v.do(func(st *state) error {
		t, ok := st.templates[id]
		if !ok {
			return domain.ErrTemplateNotFound.For(id)
		}
		out = &t
		return nil
	})
	return out, err
}

type frameworkRepo struct{ v *view }

func (r frameworkRepo) FindByID(_ context.Context, id string) (*domain.ScoringFramework, error) {
	var out *domain.ScoringFramework
	err := r.v.do(func(st *state) error {
		f, ok := st.frameworks[id]
		if !ok {
			return domain.ErrFrameworkNotFound.For(id)
		}
		out = &f
		return nil
	})
	return out, err
}

type standardRepo struct{ v *view }

func (r standardRepo) Create(_ context.Context, s *domain.Standard) error {
	return r.v.do(func(st *state) error {
		for _, other := range st.standards {
			if other.TemplateID == s.TemplateID && other.Code == s.Code {
				return domain.ErrDuplicateStandardCode.For(s.Code)
			}
		}
		st.standards[s.ID] = *s
		return nil
	})
}

func (r standardRepo) FindByID(_ context.Context, id string) (*domain.Standard, error) {
	var out *domain.Standard
	err := r.v.do(func(st *state) error {
		s, ok := st.standards[id]
		if !ok {
			return domain.ErrStandardNotFound.For(id)
		}
		out = &s
		return nil
	})
	return out, err
}

func (r standardRepo) ListByTemplate(_ context.Context, templateID string) ([]*domain.Standard, error) {
	var out []*domain.Standard
	err := r.v.do(func(st *state) error {
		for _, s := range st.standards {
			if s.TemplateID == templateID {
				s := s
				out = append(out, &s)
			}
		}
		return nil
	})
	domain.SortStandards(out)
	return out, err
}

func (r standardRepo) Update(_ context.Context, s *domain.Standard) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.standards[s.ID]; !ok {
			return domain.ErrStandardNotFound.For(s.ID)
		}
		st.standards[s.ID] = *s
		return nil
	})
}

func (r standardRepo) Delete(_ context.Context, id string) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.standards[id]; !ok {
			return domain.ErrStandardNotFound.For(id)
		}
		delete(st.standards, id)
		return nil
	})
}

type auditRepo struct{ v *view }

func (r auditRepo) Create(_ context.Context, a *domain.Audit) error {
	return r.v.do(func(st *state) error {
		for _, other := range st.audits {
			if other.Code == a.Code {
				return domain.ErrDuplicateAuditCode.For(a.Code)
			}
		}
		st.audits[a.ID] = *a
		return nil
	})
}

func (r auditRepo) FindByID(_ context.Context, id string) (*domain.Audit, error) {
	var out *domain.Audit
	err := r.v.do(func(st *state) error {
		a, ok := st.audits[id]
		if !ok {
			return domain.ErrAuditNotFound.For(id)
		}
		out = &a
		return nil
	})
	return out, err
}

// FindByIDForUpdate is FindByID; WithinTx already serializes transactions
func (r auditRepo) FindByIDForUpdate(ctx context.Context, id string) (*domain.Audit, error) {
	return r.FindByID(ctx, id)
}

func (r auditRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	var exists bool
	err := r.v.do(func(st *state) error {
		for _, a := range st.audits {
			if a.Code == code {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r auditRepo) ListRevisions(_ context.Context, parentID string) ([]*domain.Audit, error) {
	var out []*domain.Audit
	err := r.v.do(func(st *state) error {
		for _, a := range st.audits {
			if a.ParentAuditID != nil && *a.ParentAuditID == parentID {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RevisionNumber < out[j].RevisionNumber })
	return out, err
}

func (r auditRepo) Update(_ context.Context, a *domain.Audit) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.audits[a.ID]; !ok {
			return domain.ErrAuditNotFound.For(a.ID)
		}
		st.audits[a.ID] = *a
		return nil
	})
}

func (r auditRepo) Delete(_ context.Context, id string) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.audits[id]; !ok {
			return domain.ErrAuditNotFound.For(id)
		}
		delete(st.audits, id)
		for k, a := range st.audits {
			if a.ParentAuditID != nil && *a.ParentAuditID == id {
				a.ParentAuditID = nil
				st.audits[k] = a
			}
		}
		for k, resp := range st.responses {
			if resp.AuditID == id {
				delete(st.responses, k)
			}
		}
		for k, a := range st.assignments {
			if a.AuditID == id {
				delete(st.assignments, k)
			}
		}
		return nil
	})
}

type assignmentRepo struct{ v *view }

func (r assignmentRepo) Create(_ context.Context, a *domain.Assignment) error {
	return r.v.do(func(st *state) error {
		for _, other := range st.assignments {
			if other.AuditID == a.AuditID && other.UserID == a.UserID && other.Role == a.Role {
				return domain.ErrDuplicateAssignment.For(a.AuditID)
			}
		}
		st.assignments[a.ID] = *a
		return nil
	})
}

func (r assignmentRepo) FindByID(_ context.Context, id string) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := r.v.do(func(st *state) error {
		a, ok := st.assignments[id]
		if !ok {
			return domain.ErrAssignmentNotFound.For(id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r assignmentRepo) ListByAudit(_ context.Context, auditID string) ([]*domain.Assignment, error) {
	out := []*domain.Assignment{}
	err := r.v.do(func(st *state) error {
		for _, a := range st.assignments {
			if a.AuditID == auditID {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, err
}

func (r assignmentRepo) Update(_ context.Context, a *domain.Assignment) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.assignments[a.ID]; !ok {
			return domain.ErrAssignmentNotFound.For(a.ID)
		}
		st.assignments[a.ID] = *a
		return nil
	})
}

type responseRepo struct{ v *view }

func (r responseRepo) CreateBatch(_ context.Context, responses []*domain.AuditResponse) error {
	return r.v.do(func(st *state) error {
		seen := map[string]bool{}
		for _, existing := range st.responses {
			seen[existing.AuditID+"/"+existing.StandardID] = true
		}
		for _, resp := range responses {
			key := resp.AuditID + "/" + resp.StandardID
			if seen[key] {
				return domain.ErrDuplicateResponse.For(resp.AuditID).With("standard " + resp.StandardID)
			}
			seen[key] = true
		}
		for _, resp := range responses {
			st.responses[resp.ID] = *resp
		}
		return nil
	})
}

func (r responseRepo) FindByID(_ context.Context, id string) (*domain.AuditResponse, error) {
	var out *domain.AuditResponse
	err := r.v.do(func(st *state) error {
		resp, ok := st.responses[id]
		if !ok {
			return domain.ErrResponseNotFound.For(id)
		}
		out = &resp
		return nil
	})
	return out, err
}

func (r responseRepo) ListByAudit(_ context.Context, auditID string) ([]*domain.AuditResponse, error) {
	var out []*domain.AuditResponse
	err := r.v.do(func(st *state) error {
		for _, resp := range st.responses {
			if resp.AuditID == auditID {
				resp := resp
				out = append(out, &resp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StandardID < out[j].StandardID })
	return out, err
}

func (r responseRepo) Update(_ context.Context, resp *domain.AuditResponse) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.responses[resp.ID]; !ok {
			return domain.ErrResponseNotFound.For(resp.ID)
		}
		st.responses[resp.ID] = *resp
		return nil
	})
}
