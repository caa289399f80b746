package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/nls-advisor/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect the digital competency framework and subject profiles",
}

var taxonomyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the competencies of a tier",
	Run: func(cmd *cobra.Command, _ []string) {
		table, _, tier := taxonomyFromFlags(cmd)

		entries := table.Entries(tier)
		for _, entry := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t[%s] %s\n", entry.Code, table.Domain(entry.Domain), entry.Description)
		}
	},
}

var taxonomyLookupCmd = &cobra.Command{
	Use:   "lookup <code>",
	Short: "Show the requirement of a competency code",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		table, _, tier := taxonomyFromFlags(cmd)

		entry, err := table.Lookup(tier, args[0])
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", strings.TrimSpace(args[0]), taxonomy.NotFoundRequirement)
			log.Fatal(err)
		}

		if err := printJSON(cmd.OutOrStdout(), entry); err != nil {
			log.Fatal(err)
		}
	},
}

var taxonomySubjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the subject profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		_, profiles, _ := taxonomyFromFlags(cmd)

		if err := printJSON(cmd.OutOrStdout(), profiles.All()); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
	taxonomyCmd.AddCommand(taxonomyListCmd, taxonomyLookupCmd, taxonomySubjectsCmd)

	taxonomyCmd.PersistentFlags().StringP("tier", "t", "", "competency tier: TC1 or TC2 (default from config)")
}

func taxonomyFromFlags(cmd *cobra.Command) (*taxonomy.Table, *taxonomy.Profiles, taxonomy.Tier) {
	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	table, profiles, err := loadTaxonomy(config)
	if err != nil {
		log.Fatalf("loading the competency framework: %s", err)
	}

	raw := config.Tier
	if flag, _ := cmd.Flags().GetString("tier"); flag != "" {
		raw = flag
	}

	tier, err := taxonomy.ParseTier(raw)
	if err != nil {
		log.Fatal(err)
	}

	return table, profiles, tier
}
