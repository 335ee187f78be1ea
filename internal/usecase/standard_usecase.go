package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/auditflow/auditflow/internal/logger"
	"github.com/auditflow/auditflow/internal/ports"
)

// InsertStandardRequest represents the request to add a standard to a template
type InsertStandardRequest struct {
	ParentID     *string `json:"parent_id,omitempty"`
	Code         string  `json:"code"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	DisplayOrder int     `json:"display_order"`
	IsAuditable  bool    `json:"is_auditable"`
	IsActive     *bool   `json:"is_active,omitempty"`
	Weight       float64 `json:"weight"`
}

// RebalanceMode selects how RebalanceWeights recomputes weights
type RebalanceMode string

const (
	RebalanceEqual     RebalanceMode = "equal"
	RebalanceNormalize RebalanceMode = "normalize"
)

// StandardUseCase maintains a draft template's standard tree and its weights
type StandardUseCase struct {
	base
}

// NewStandardUseCase creates a new standard use case
func NewStandardUseCase(uow ports.UnitOfWork, eventPublisher ports.EventPublisher, log logger.Logger) *StandardUseCase {
	return &StandardUseCase{base: newBase(uow, eventPublisher, log, "standard_usecase")}
}

// ListStandards returns every standard of a template ordered by level and display order
func (uc *StandardUseCase) ListStandards(ctx context.Context, templateID string) ([]*domain.Standard, error) {
	repos := uc.uow.Repositories()
	if _, err := repos.Templates.FindByID(ctx, templateID); err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	standards, err := repos.Standards.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standards: %w", err)
	}
	domain.SortStandards(standards)
	return standards, nil
}

// InsertStandard adds one standard to a draft template. The weight sum is not
// enforced here; audits validate it when they are created from the template.
func (uc *StandardUseCase) InsertStandard(ctx context.Context, templateID string, req InsertStandardRequest) (*domain.Standard, error) {
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return nil, fmt.Errorf("validation failed: %w", domain.ErrInvalidInput.With("code is required"))
	}
	if math.IsNaN(req.Weight) || req.Weight < 0 || req.Weight > domain.WeightTotal {
		return nil, fmt.Errorf("validation failed: %w", domain.ErrOutOfRange.With(fmt.Sprintf("weight %v must be between 0 and 100", req.Weight)))
	}

	var standard *domain.Standard
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		template, err := tx.Templates.FindByID(ctx, templateID)
		if err != nil {
			return err
		}
		if err := template.EnsureEditable(); err != nil {
			return err
		}

		existing, err := tx.Standards.ListByTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		tree := domain.NewStandardTree(existing)
		if _, taken := tree.GetByCode(req.Code); taken {
			return domain.ErrDuplicateStandardCode.For(req.Code)
		}

		standard = domain.NewStandard(templateID, req.Code, req.Title)
		standard.Description = req.Description
		standard.DisplayOrder = req.DisplayOrder
		standard.IsAuditable = req.IsAuditable
		standard.Weight = req.Weight
		if req.IsActive != nil {
			standard.IsActive = *req.IsActive
		}

		var parent *domain.Standard
		if req.ParentID != nil {
			p, ok := tree.Get(*req.ParentID)
			if !ok {
				return domain.ErrParentNotFound.For(*req.ParentID)
			}
			parent = p
		}
		if err := standard.AttachTo(parent); err != nil {
			return err
		}

		return tx.Standards.Create(ctx, standard)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert standard: %w", err)
	}

	uc.log.Info(ctx, "standard inserted", map[string]interface{}{
		"template_id": templateID,
		"standard_id": standard.ID,
		"level":       standard.Level,
	})
	uc.publish(ctx, ports.EventTypeStandardCreated, ports.AggregateStandard, standard.ID, map[string]interface{}{
		"template_id": templateID,
		"code":        standard.Code,
		"weight":      standard.Weight,
	})
	return standard, nil
}

// ImportStandards inserts a flat batch linked by parent codes as one unit of work
func (uc *StandardUseCase) ImportStandards(ctx context.Context, templateID string, rows []domain.StandardImportRow) ([]*domain.Standard, error) {
	var planned []*domain.Standard
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		template, err := tx.Templates.FindByID(ctx, templateID)
		if err != nil {
			return err
		}
		if err := template.EnsureEditable(); err != nil {
			return err
		}

		existing, err := tx.Standards.ListByTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		planned, err = domain.PlanStandardImport(templateID, rows, existing)
		if err != nil {
			return err
		}

		for _, s := range planned {
			if err := tx.Standards.Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import standards: %w", err)
	}

	uc.log.Info(ctx, "standards imported", map[string]interface{}{
		"template_id": templateID,
		"count":       len(planned),
	})
	uc.publish(ctx, ports.EventTypeStandardsImported, ports.AggregateTemplate, templateID, map[string]interface{}{
		"count": len(planned),
	})
	return planned, nil
}

// DeleteStandard removes a leaf standard. When it carried weight, the rest of
// the template's scored standards absorb it proportionally.
func (uc *StandardUseCase) DeleteStandard(ctx context.Context, standardID string) error {
	var templateID string
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		standard, err := tx.Standards.FindByID(ctx, standardID)
		if err != nil {
			return err
		}
		templateID = standard.TemplateID

		template, err := tx.Templates.FindByID(ctx, standard.TemplateID)
		if err != nil {
			return err
		}
		if err := template.EnsureEditable(); err != nil {
			return err
		}

		all, err := tx.Standards.ListByTemplate(ctx, standard.TemplateID)
		if err != nil {
			return err
		}
		tree := domain.NewStandardTree(all)
		if tree.HasChildren(standardID) {
			return domain.ErrHasChildren.For(standardID)
		}

		scored := tree.Scored()
		index := indexOfStandard(scored, standardID)
		if index >= 0 && len(scored) > 1 {
			weights, err := domain.RedistributeWeights(domain.StandardWeights(scored), index)
			if err != nil {
				return err
			}
			remaining := append(append([]*domain.Standard(nil), scored[:index]...), scored[index+1:]...)
			if err := uc.saveWeights(ctx, tx, remaining, weights); err != nil {
				return err
			}
		}

		return tx.Standards.Delete(ctx, standardID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete standard: %w", err)
	}

	uc.log.Info(ctx, "standard deleted", map[string]interface{}{
		"template_id": templateID,
		"standard_id": standardID,
	})
	uc.publish(ctx, ports.EventTypeStandardDeleted, ports.AggregateStandard, standardID, map[string]interface{}{
		"template_id": templateID,
	})
	return nil
}

// RebalanceWeights recomputes the weights of every scored standard of a draft template
func (uc *StandardUseCase) RebalanceWeights(ctx context.Context, templateID string, mode RebalanceMode) ([]*domain.Standard, error) {
	if mode != RebalanceEqual && mode != RebalanceNormalize {
		return nil, fmt.Errorf("validation failed: %w", domain.ErrInvalidInput.With(fmt.Sprintf("unknown rebalance mode %q", mode)))
	}

	var scored []*domain.Standard
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		var err error
		scored, err = uc.editableScored(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if len(scored) == 0 {
			return domain.ErrNoAuditableStandards.For(templateID)
		}

		var weights []float64
		if mode == RebalanceEqual {
			weights, err = domain.EqualDistribution(len(scored))
		} else {
			weights, err = domain.NormalizeWeights(domain.StandardWeights(scored))
		}
		if err != nil {
			return err
		}
		return uc.saveWeights(ctx, tx, scored, weights)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebalance weights: %w", err)
	}

	uc.weightsChanged(ctx, templateID, string(mode), scored)
	return scored, nil
}

// ChangeWeight sets one standard's weight and spreads the difference over the
// other scored standards of its template.
func (uc *StandardUseCase) ChangeWeight(ctx context.Context, standardID string, newWeight float64) ([]*domain.Standard, error) {
	var (
		templateID string
		scored     []*domain.Standard
	)
	err := uc.uow.WithinTx(ctx, func(tx ports.Repositories) error {
		standard, err := tx.Standards.FindByID(ctx, standardID)
		if err != nil {
			return err
		}
		templateID = standard.TemplateID
		if !standard.IsScored() {
			return domain.ErrInvalidInput.For(standardID).With("only auditable, active standards carry weight")
		}

		scored, err = uc.editableScored(ctx, tx, templateID)
		if err != nil {
			return err
		}
		index := indexOfStandard(scored, standardID)
		weights, err := domain.ApplyWeightChange(domain.StandardWeights(scored), index, newWeight)
		if err != nil {
			return err
		}
		return uc.saveWeights(ctx, tx, scored, weights)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change weight: %w", err)
	}

	uc.weightsChanged(ctx, templateID, "change", scored)
	return scored, nil
}

func (uc *StandardUseCase) editableScored(ctx context.Context, tx ports.Repositories, templateID string) ([]*domain.Standard, error) {
	template, err := tx.Templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := template.EnsureEditable(); err != nil {
		return nil, err
	}
	all, err := tx.Standards.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return domain.ScoredStandards(all), nil
}

// saveWeights assigns weights[i] to standards[i] and persists only the changed rows
func (uc *StandardUseCase) saveWeights(ctx context.Context, tx ports.Repositories, standards []*domain.Standard, weights []float64) error {
	if len(standards) != len(weights) {
		return fmt.Errorf("weight count %d does not match %d standards", len(weights), len(standards))
	}
	now := uc.now()
	for i, s := range standards {
		if s.Weight == weights[i] {
			continue
		}
		s.Weight = weights[i]
		s.UpdatedAt = now
		if err := tx.Standards.Update(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (uc *StandardUseCase) weightsChanged(ctx context.Context, templateID, operation string, standards []*domain.Standard) {
	weights := make(map[string]interface{}, len(standards))
	for _, s := range standards {
		weights[s.Code] = s.Weight
	}
	uc.log.Info(ctx, "template weights changed", map[string]interface{}{
		"template_id": templateID,
		"operation":   operation,
		"count":       len(standards),
	})
	uc.publish(ctx, ports.EventTypeWeightsChanged, ports.AggregateTemplate, templateID, map[string]interface{}{
		"operation": operation,
		"weights":   weights,
	})
}

func indexOfStandard(standards []*domain.Standard, id string) int {
	for i, s := range standards {
		if s.ID == id {
			return i
		}
	}
	return -1
}
