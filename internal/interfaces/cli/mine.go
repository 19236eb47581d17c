package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/xas-miner/internal/application/mining"
	"github.com/turtacn/xas-miner/internal/domain/corpus"
	"github.com/turtacn/xas-miner/internal/domain/xas"
)

// mineOptions are the flags shared by classify and tree.
type mineOptions struct {
	Scope       string
	Workers     int
	WriteBack   bool
	FromRecords bool
}

// ArticleTuples is one line of classify output.
type ArticleTuples struct {
	UID    string      `json:"uid"`
	Origin string      `json:"origin,omitempty"`
	Tuples []xas.Tuple `json:"tuples"`
}

// NewClassifyCmd extracts tuples per article, optionally storing them back
// into the records.
func NewClassifyCmd() *cobra.Command {
	opts := &mineOptions{}
	cmd := &cobra.Command{
		Use:   "classify [dir...]",
		Short: "Classify the XAS figures of every article",
		Long: "Extract (region, element, edge) tuples from each article and print them.\n" +
			"With --write-back the deduplicated tuples are stored under xas_info in\n" +
			"each JSON record.  Directory arguments override corpus.dirs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, args, opts, false)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Scope, "scope", "", "sentences to scan: captions or article (default: corpus.scope)")
	f.IntVar(&opts.Workers, "workers", 0, "extraction workers (default: corpus.workers)")
	f.BoolVar(&opts.WriteBack, "write-back", false, "store tuples under xas_info in each record")
	return cmd
}

// NewTreeCmd builds and persists the taxonomy tree.
func NewTreeCmd() *cobra.Command {
	opts := &mineOptions{}
	cmd := &cobra.Command{
		Use:   "tree [dir...]",
		Short: "Build the taxonomy tree and persist it to the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, args, opts, true)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Workers, "workers", 0, "extraction workers (default: corpus.workers)")
	f.BoolVar(&opts.FromRecords, "from-records", false, "use the xas_info already stored in each record")
	return cmd
}

func runMine(cmd *cobra.Command, args []string, opts *mineOptions, buildTree bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	ctx := cmd.Context()

	res := newResources(cliCtx.Logger)
	defer res.Close()

	_, metrics, err := openMetrics(cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	src, err := openSource(cfg, args, buildTree, res)
	if err != nil {
		return err
	}
	cache, err := openCache(cfg, metrics, res)
	if err != nil {
		return err
	}
	publisher, err := openPublisher(ctx, cfg, res)
	if err != nil {
		return err
	}

	svcOpts := []mining.Option{
		mining.WithMetrics(metrics),
		mining.WithCache(cache),
		mining.WithPublisher(publisher),
	}
	if buildTree {
		repo, err := openRepository(ctx, cfg, res)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, mining.WithRepository(repo))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Corpus.Workers
	}
	svc := mining.NewService(newBuilder(cliCtx.Logger), mining.Config{Workers: workers}, cliCtx.Logger, svcOpts...)

	scope := opts.Scope
	if scope == "" {
		scope = cfg.Corpus.Scope
	}
	if buildTree {
		scope = string(xas.ScopeCaptions)
	}
	req := &mining.RunRequest{
		Scope:       xas.Scope(scope),
		FromRecords: opts.FromRecords,
		WriteBack:   opts.WriteBack,
		BuildTree:   buildTree,
	}

	out := cmd.OutOrStdout()
	var collected []ArticleTuples
	if !buildTree {
		req.Observer = func(a *corpus.Article, tuples []xas.Tuple) {
			if cliCtx.OutputFormat == FormatJSON {
				collected = append(collected, ArticleTuples{UID: a.UID, Origin: a.Origin, Tuples: nonNilTuples(tuples)})
				return
			}
			fmt.Fprintf(out, "%s\t%s\n", a.UID, strings.Join(tupleLabels(tuples), ","))
		}
	}

	result, err := svc.Run(ctx, src, req)
	if err != nil {
		return err
	}

	if cliCtx.OutputFormat == FormatJSON {
		if buildTree {
			return printJSON(out, result)
		}
		return printJSON(out, nonNilArticles(collected))
	}
	if buildTree {
		fmt.Fprint(out, FormatTable(
			[]string{"RUN", "ARTICLES", "TUPLES", "LEAVES", "PRUNED"},
			[][]string{{
				result.RunID,
				fmt.Sprint(result.Articles),
				fmt.Sprint(result.Tuples),
				fmt.Sprint(result.Leaves),
				fmt.Sprint(result.Pruned),
			}},
		))
	}
	return nil
}

// tupleLabels lists the class ids of tuples, with the figure id when set.
func tupleLabels(tuples []xas.Tuple) []string {
	labels := make([]string, 0, len(tuples))
	for _, t := range tuples {
		if t.FigID != "" {
			labels = append(labels, t.FigID+":"+t.Class())
			continue
		}
		labels = append(labels, t.Class())
	}
	return labels
}

func nonNilTuples(ts []xas.Tuple) []xas.Tuple {
	if ts == nil {
		return []xas.Tuple{}
	}
	return ts
}

func nonNilArticles(as []ArticleTuples) []ArticleTuples {
	if as == nil {
		return []ArticleTuples{}
	}
	return as
}
