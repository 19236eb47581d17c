package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/xas-miner/internal/domain/evaluation"
	"github.com/turtacn/xas-miner/pkg/errors"
)

// EvaluationResult is the JSON output of evaluate.
type EvaluationResult struct {
	Articles  int                  `json:"articles"`
	Alignment evaluation.Alignment `json:"alignment"`
	Report    evaluation.Report    `json:"report"`
}

// NewEvaluateCmd scores the persisted tree against the labelled articles.
func NewEvaluateCmd() *cobra.Command {
	var groundTruth string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the persisted taxonomy tree against a ground-truth CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if groundTruth == "" {
				groundTruth = cfg.Evaluation.GroundTruth
			}
			if groundTruth == "" {
				return errors.New(errors.ErrCodeBadRequest, "no ground truth given; set --ground-truth or evaluation.ground_truth")
			}

			truth, err := evaluation.LoadGroundTruth(groundTruth, cliCtx.Logger)
			if err != nil {
				return err
			}

			res := newResources(cliCtx.Logger)
			defer res.Close()
			repo, err := openRepository(cmd.Context(), cfg, res)
			if err != nil {
				return err
			}
			nodes, err := repo.Load(cmd.Context())
			if err != nil {
				return err
			}

			al, report := evaluation.Evaluate(truth, nodes)
			out := cmd.OutOrStdout()
			if cliCtx.OutputFormat == FormatJSON {
				return printJSON(out, EvaluationResult{Articles: truth.Len(), Alignment: al, Report: report})
			}
			fmt.Fprintf(out, "articles: %d\n\n", truth.Len())
			fmt.Fprint(out, report.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&groundTruth, "ground-truth", "", "ground-truth CSV (default: evaluation.ground_truth)")
	return cmd
}
