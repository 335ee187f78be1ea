package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/auditflow/auditflow/internal/domain"
	"github.com/spf13/cobra"
)

// weightResult mirrors the server calculator output
type weightResult struct {
	Weights []float64 `json:"weights"`
	Sum     float64   `json:"sum"`
	Valid   bool      `json:"valid"`
}

func newWeightsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Compute weight distributions offline",
	}

	var index int
	var to float64

	equal := &cobra.Command{
		Use:   "equal <count>",
		Short: "Split 100 evenly across count standards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return codeError(2, "count must be an integer, got %q", args[0])
			}
			return runWeights(cmd.OutOrStdout(), flags.format, func() ([]float64, error) {
				return domain.EqualDistribution(n)
			})
		},
	}

	normalize := &cobra.Command{
		Use:   "normalize <weight>...",
		Short: "Scale weights proportionally to sum to 100",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := parseWeights(args)
			if err != nil {
				return err
			}
			return runWeights(cmd.OutOrStdout(), flags.format, func() ([]float64, error) {
				return domain.NormalizeWeights(weights)
			})
		},
	}

	redistribute := &cobra.Command{
		Use:   "redistribute --index i <weight>...",
		Short: "Drop the weight at index and spread it over the rest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := parseWeights(args)
			if err != nil {
				return err
			}
			return runWeights(cmd.OutOrStdout(), flags.format, func() ([]float64, error) {
				return domain.RedistributeWeights(weights, index)
			})
		},
	}
	redistribute.Flags().IntVar(&index, "index", 0, "zero-based index of the removed weight")

	change := &cobra.Command{
		Use:   "change --index i --to w <weight>...",
		Short: "Set one weight and rebalance the others proportionally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := parseWeights(args)
			if err != nil {
				return err
			}
			return runWeights(cmd.OutOrStdout(), flags.format, func() ([]float64, error) {
				return domain.ApplyWeightChange(weights, index, to)
			})
		},
	}
	change.Flags().IntVar(&index, "index", 0, "zero-based index of the changed weight")
	change.Flags().Float64Var(&to, "to", 0, "new weight for the standard at index")
	_ = change.MarkFlagRequired("to")

	validate := &cobra.Command{
		Use:   "validate <weight>...",
		Short: "Check that weights sum to 100 within tolerance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := parseWeights(args)
			if err != nil {
				return err
			}
			if err := runWeights(cmd.OutOrStdout(), flags.format, func() ([]float64, error) {
				return weights, nil
			}); err != nil {
				return err
			}
			if err := domain.ValidateWeightSum(weights); err != nil {
				return codeError(3, "%s", err)
			}
			return nil
		},
	}

	cmd.AddCommand(equal, normalize, redistribute, change, validate)
	return cmd
}

func runWeights(out io.Writer, format string, compute func() ([]float64, error)) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	weights, err := compute()
	if err != nil {
		return codeError(3, "%s", err)
	}
	result := weightResult{
		Weights: weights,
		Sum:     domain.SumWeights(weights),
		Valid:   domain.ValidateWeightSum(weights) == nil,
	}
	return renderWeights(out, format, result)
}

func renderWeights(out io.Writer, format string, r weightResult) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	parts := make([]string, len(r.Weights))
	for i, w := range r.Weights {
		parts[i] = strconv.FormatFloat(w, 'f', 2, 64)
	}
	fmt.Fprintf(out, "weights: %s\n", strings.Join(parts, " "))
	fmt.Fprintf(out, "sum:     %.2f\n", r.Sum)
	fmt.Fprintf(out, "valid:   %t\n", r.Valid)
	return nil
}

func parseWeights(args []string) ([]float64, error) {
	var weights []float64
	for _, arg := range args {
		// "40,30,30" and "40 30 30" are both accepted
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			w, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, codeError(2, "invalid weight %q", field)
			}
			weights = append(weights, w)
		}
	}
	return weights, nil
}
