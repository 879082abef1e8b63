// analyze runs a one-shot inventory analysis over a consumption export
// and writes the purchase requirement report, without needing the server.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aurafarma/backend-go/internal/analysis"
	"github.com/aurafarma/backend-go/internal/domain"
	"github.com/aurafarma/backend-go/internal/export"
	"github.com/aurafarma/backend-go/internal/ingest"
	"github.com/aurafarma/backend-go/internal/policy"
)

func main() {
	app := &cli.App{
		Name:      "analyze",
		Usage:     "Analyze a SISMED consumption export and write the requirement report",
		ArgsUsage: "<export.csv|export.xlsx>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Report output path (default: <input>-requerimiento.csv)",
			},
			&cli.StringFlag{
				Name:  "reference-month",
				Usage: "Reference month label, e.g. 2026-08",
			},
			&cli.BoolFlag{
				Name:  "include-cold-chain",
				Usage: "Include cold-chain items (vaccines, diluents) in suggestions",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-keyword",
				Usage: "Override the cold-chain exclusion keyword list",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one export file, got %d", c.NArg())
	}
	inputPath := c.Args().First()

	items, err := ingest.ParseFile(inputPath)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", inputPath, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%s has no data rows", inputPath)
	}

	excludeColdChain := !c.Bool("include-cold-chain")
	var exclusion analysis.ExclusionPolicy
	if excludeColdChain {
		exclusion = policy.NewKeywordExclusion(c.StringSlice("exclude-keyword"))
	}

	analyzer := analysis.NewAnalyzer(exclusion)
	result := analyzer.Analyze(items, c.String("reference-month"), excludeColdChain)

	// A one-shot run has no pharmacist in the loop, so every suggestion
	// counts as validated for the report.
	review := make(domain.ReviewState, len(result.Items))
	for _, item := range result.Items {
		review[item.ID] = true
	}
	snapshot := domain.Snapshot{
		Result:  result,
		Review:  review,
		SavedAt: time.Now().UTC(),
	}

	outputPath := c.String("output")
	if outputPath == "" {
		base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		outputPath = base + "-requerimiento.csv"
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", outputPath, err)
	}
	defer out.Close()

	if err := export.WriteRequirementCSV(out, snapshot); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}

	printSummary(result, outputPath)
	return nil
}

func printSummary(result domain.AnalysisResult, outputPath string) {
	ind := result.Indicators
	fmt.Printf("Run %s\n", result.ID)
	if result.ReferenceMonth != "" {
		fmt.Printf("Reference month:   %s\n", result.ReferenceMonth)
	}
	fmt.Printf("Items analyzed:    %d\n", ind.TotalItems)
	fmt.Printf("Available:         %d (%.1f%%, %s)\n", ind.AvailableItems, ind.AvailabilityScore, ind.AvailabilityTier)
	fmt.Printf("Out of stock:      %d\n", ind.OutOfStockItems)
	fmt.Printf("Outlier histories: %d\n", ind.OutlierItems)
	fmt.Printf("Suggested spend:   %.2f\n", result.SuggestedInvest)
	fmt.Printf("Estimated savings: %.2f\n", result.EstimatedSavings)
	if result.Summary != "" {
		fmt.Printf("\n%s\n", result.Summary)
	}
	fmt.Printf("\nReport written to %s\n", outputPath)
}
