package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
)

// NewFigRefCmd lists the body sentences citing one figure of a record.
func NewFigRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "figref <record.json> <fig_id>",
		Short: "List the body sentences that cite a figure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			a, err := corpus.ReadArticle(args[0])
			if err != nil {
				return err
			}
			refs, err := xas.FigureReferences(args[1], a.BodyText)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cliCtx.OutputFormat == FormatJSON {
				if refs == nil {
					refs = []xas.FigureReference{}
				}
				return printJSON(out, refs)
			}
			for _, ref := range refs {
				fmt.Fprintf(out, ">> Sent: %s\n", ref.Sentence)
				for _, e := range ref.Entities {
					fmt.Fprintf(out, ">> Cem: %s\n", e.String())
				}
			}
			return nil
		},
	}
}
