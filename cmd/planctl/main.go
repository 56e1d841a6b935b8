package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/n9te9/federation-query-planner/internal/planserver"
	"github.com/n9te9/federation-query-planner/planner"
	"github.com/n9te9/federation-query-planner/registry"
)

const plannerVersion = "v0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of planctl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("planctl " + plannerVersion)
	},
}

var (
	planManifest      string
	planOperationName string
	planAutoFragment  bool
)

var planCmd = &cobra.Command{
	Use:   "plan [query-file]",
	Short: "Plan a GraphQL operation against a composed schema and print the resulting query plan as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryText, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading query file: %w", err)
		}

		sdls, err := registry.LoadSDLs(planManifest)
		if err != nil {
			return fmt.Errorf("loading manifest: %w", err)
		}

		p, err := planner.NewQueryPlanner(sdls)
		if err != nil {
			return fmt.Errorf("building planner: %w", err)
		}

		plan, err := p.Plan(string(queryText), planner.QueryPlanningOptions{
			AutoFragmentization: planAutoFragment,
			OperationName:       planOperationName,
		})
		if err != nil {
			return fmt.Errorf("planning query: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a QueryPlanner over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := planserver.LoadConfig(serveConfigPath)
		if err != nil {
			return err
		}
		return planserver.Run(cfg)
	},
}

func main() {
	planCmd.Flags().StringVar(&planManifest, "manifest", "planctl.yaml", "path to the subgraph manifest")
	planCmd.Flags().StringVar(&planOperationName, "operation-name", "", "operation name to plan, when the document has more than one")
	planCmd.Flags().BoolVar(&planAutoFragment, "auto-fragmentization", false, "hoist repeated selection shapes into shared fragments")

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "planctl-serve.yaml", "path to the server config file")

	rootCmd := &cobra.Command{Use: "planctl"}
	rootCmd.AddCommand(versionCmd, planCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
