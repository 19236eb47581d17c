package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/xas-miner/internal/config"
)

const redacted = "******"

// NewConfigCmd groups the configuration subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(redact(*cliCtx.Config)); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}

// redact blanks every credential of a config copy.
func redact(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Cache.Redis.Password)
	mask(&cfg.Postgres.Password)
	mask(&cfg.Neo4j.Password)
	mask(&cfg.MinIO.AccessKey)
	mask(&cfg.MinIO.SecretKey)
	return cfg
}
