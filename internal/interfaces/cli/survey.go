package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/xas-miner/internal/application/survey"
)

// NewSurveyCmd runs the whole-article survey.
func NewSurveyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "survey [dir...]",
		Short: "Survey edge mentions across whole articles",
		Long: "Count the articles whose abstract or body mentions an absorption edge of\n" +
			"a transition metal, per metal, and list the matching sentences.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			res := newResources(cliCtx.Logger)
			defer res.Close()
			src, err := openSource(cliCtx.Config, args, true, res)
			if err != nil {
				return err
			}

			report, err := survey.NewSurveyor(newBuilder(cliCtx.Logger), cliCtx.Logger).Run(cmd.Context(), src)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == FormatJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			return report.WriteText(cmd.OutOrStdout())
		},
	}
}
