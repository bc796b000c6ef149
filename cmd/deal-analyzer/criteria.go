package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"deal-analyzer/internal/common/database"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/resolver"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Inspect or publish investment criteria",
}

var criteriaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Resolve the configured criteria and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents(cmd.Context(), cfg, buildOptions{retries: 1})
		if err != nil {
			return err
		}
		defer c.Close()

		res := c.orch.Criteria(cmd.Context())
		return writeIndentedJSON(cmd.OutOrStdout(), map[string]interface{}{
			"criteria": res.Criteria,
			"source":   res.Source,
			"flags":    res.Flags,
		})
	},
}

var criteriaPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Store a criteria sheet (markdown or JSON) in Postgres as the active profile",
	Example: `  deal-analyzer criteria push --file configs/investment_criteria.md --profile default`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		profile, _ := cmd.Flags().GetString("profile")
		if profile == "" {
			profile = cfg.Criteria.Profile
		}

		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		saved, err := pushCriteria(cmd.Context(), pg, path, profile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored criteria %q as profile %q\n", saved.Name, profile)
		return nil
	},
}

func init() {
	criteriaPushCmd.Flags().String("file", "", "criteria sheet (.md or .json)")
	criteriaPushCmd.Flags().String("profile", "", "profile name (default: criteria.profile from config)")
	_ = criteriaPushCmd.MarkFlagRequired("file")

	criteriaCmd.AddCommand(criteriaShowCmd)
	criteriaCmd.AddCommand(criteriaPushCmd)
}

type criteriaStore interface {
	Migrate(ctx context.Context) error
	SaveCriteria(ctx context.Context, profile, name string, document []byte) error
}

var _ criteriaStore = (*database.PostgresClient)(nil)

func pushCriteria(ctx context.Context, store criteriaStore, path, profile string) (models.CriteriaConfig, error) {
	c, err := resolver.NewFileCriteriaSource(path).LoadCriteria(ctx)
	if err != nil {
		return c, err
	}
	if c.Name == "" {
		c.Name = profile
	}

	doc, err := json.Marshal(c)
	if err != nil {
		return c, fmt.Errorf("encode criteria: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return c, err
	}
	if err := store.SaveCriteria(ctx, profile, c.Name, doc); err != nil {
		return c, err
	}
	return c, nil
}

func writeIndentedJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
