package http

import (
	"net/http"

	"github.com/auditflow/auditflow/internal/apperror"
	"github.com/auditflow/auditflow/internal/domain"
	"github.com/gorilla/mux"
)

// WeightHandler exposes the stateless weight calculator
type WeightHandler struct{}

// NewWeightHandler creates a new weight handler
func NewWeightHandler() *WeightHandler {
	return &WeightHandler{}
}

// RegisterRoutes registers weight calculator routes
func (h *WeightHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/weights/{op}", h.Calculate).Methods("POST")
}

// WeightRequest carries the inputs of every calculator operation; each
// operation reads only the fields it needs.
type WeightRequest struct {
	Count     int       `json:"count,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
	Index     int       `json:"index,omitempty"`
	NewWeight float64   `json:"new_weight,omitempty"`
}

// WeightResult is the calculator output
type WeightResult struct {
	Weights []float64 `json:"weights"`
	Sum     float64   `json:"sum"`
	Valid   bool      `json:"valid"`
}

// Calculate runs one of equal, normalize, redistribute, change or validate
func (h *WeightHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req WeightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		weights []float64
		err     error
	)
	switch op := mux.Vars(r)["op"]; op {
	case "equal":
		weights, err = domain.EqualDistribution(req.Count)
	case "normalize":
		weights, err = domain.NormalizeWeights(req.Weights)
	case "redistribute":
		weights, err = domain.RedistributeWeights(req.Weights, req.Index)
	case "change":
		weights, err = domain.ApplyWeightChange(req.Weights, req.Index, req.NewWeight)
	case "validate":
		weights = req.Weights
	default:
		writeError(w, apperror.NewNotFound("unknown weight operation "+op))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	success(w, http.StatusOK, "Weights calculated successfully", WeightResult{
		Weights: weights,
		Sum:     domain.SumWeights(weights),
		Valid:   domain.ValidateWeightSum(weights) == nil,
	})
}
