package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qcluster/adapters/csvio"
	"qcluster/adapters/excel"
	"qcluster/adapters/postgres"
	"qcluster/adapters/report"
	"qcluster/app"
	"qcluster/domain/study"
	"qcluster/internal/config"
	"qcluster/internal/testkit"
	"qcluster/ports"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "qcluster",
		Short: "Space-time clustering analysis for case-control studies",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		details    string
		histories  string
		focus      string
		k          int
		shuffles   int
		alpha      float64
		exposure   bool
		weights    bool
		correction string
		seed       int64
		outDir     string
		prefix     string
		excelPath  string
		reportPath string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full permutation analysis on a study",
		Long: `Run the space-time clustering analysis on a case-control study.

The study is read from two CSV files (individual details and residence
histories), optionally extended with focus locations. Results are written
as CSV tables, and optionally as an Excel workbook, an HTML report, and a
row in the configured results database.

Example: qcluster run --details details.csv --histories histories.csv --k 5 --shuffles 999 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			corr, err := study.ParseCorrection(correction)
			if err != nil {
				return err
			}

			cfg := study.Config{
				K:           k,
				Shuffles:    shuffles,
				Alpha:       alpha,
				UseExposure: exposure,
				UseWeights:  weights,
				Correction:  corr,
				Workers:     workers,
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}

			return runStudy(cmd, details, histories, focus, outDir, prefix, excelPath, reportPath, cfg)
		},
	}

	defaults := study.DefaultConfig()
	cmd.Flags().StringVar(&details, "details", "", "Individual details CSV (required)")
	cmd.Flags().StringVar(&histories, "histories", "", "Residence histories CSV (required)")
	cmd.Flags().StringVar(&focus, "focus", "", "Focus location histories CSV (optional)")
	cmd.Flags().IntVar(&k, "k", defaults.K, "Number of nearest neighbours")
	cmd.Flags().IntVar(&shuffles, "shuffles", defaults.Shuffles, "Number of permutation shuffles")
	cmd.Flags().Float64Var(&alpha, "alpha", defaults.Alpha, "Significance level")
	cmd.Flags().BoolVar(&exposure, "exposure", false, "Restrict contributions to each case's exposure window")
	cmd.Flags().BoolVar(&weights, "weights", false, "Weight contributions by case probability")
	cmd.Flags().StringVar(&correction, "correction", string(study.CorrectionNone), "Multiple-testing correction: none|binomial|fdr")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (omit for a time-derived seed)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory for CSV tables (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Output file prefix (default from config)")
	cmd.Flags().StringVar(&excelPath, "excel", "", "Also write an Excel workbook to this path")
	cmd.Flags().StringVar(&reportPath, "report", "", "Also write an HTML report to this path")
	cmd.Flags().IntVar(&workers, "workers", 0, "Permutation worker count (default from config)")
	_ = cmd.MarkFlagRequired("details")
	_ = cmd.MarkFlagRequired("histories")

	return cmd
}

func runStudy(cmd *cobra.Command, details, histories, focus, outDir, prefix, excelPath, reportPath string, cfg study.Config) error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = appCfg.Output.Dir
	}
	if prefix == "" {
		prefix = appCfg.Output.Prefix
	}
	if cfg.Workers == 0 {
		cfg.Workers = appCfg.Analysis.Workers
	}

	sinks := []ports.ResultsSink{csvio.NewWriter(outDir, prefix)}
	if excelPath != "" {
		sinks = append(sinks, excel.NewWorkbookWriter(excelPath))
	}
	if reportPath != "" {
		sinks = append(sinks, report.NewHTMLWriter(reportPath))
	}

	var store ports.ResultsStore
	if appCfg.Database.Enabled {
		repo, err := postgres.NewStudyRepository(appCfg.Database.URL)
		if err != nil {
			return fmt.Errorf("results store unavailable: %w", err)
		}
		defer repo.Close()
		store = repo
	}

	svc := app.NewStudyService(csvio.NewReader(details, histories, focus), store, sinks...)
	started := time.Now()
	res, err := svc.Run(cmd.Context(), app.RunRequest{Config: cfg})
	if err != nil {
		return err
	}

	fmt.Printf("\n=== ANALYSIS RESULTS ===\n")
	fmt.Printf("Study ID: %s\n", res.StudyID)
	fmt.Printf("Seed: %d\n", res.Seed)
	fmt.Printf("Fingerprint: %s\n", res.Fingerprint)
	fmt.Printf("Runtime: %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("Q: %g (p=%g)\n", res.Q.Value, res.Q.PValue)
	fmt.Printf("Qf: %g (p=%g)\n", res.Qf.Value, res.Qf.PValue)
	fmt.Printf("Q per case-year: %g (p=%g)\n", res.QCaseYears.Value, res.QCaseYears.PValue)
	fmt.Printf("Significant dates: %d/%d\n", res.SignificantDateCount(), len(res.DateOrder))
	fmt.Printf("Significant cases: %d/%d\n", res.SignificantCaseCount(), len(res.CaseOrder))
	for _, c := range res.Corrections {
		fmt.Printf("Correction (%s, %s): %d tests, %d significant, family p=%g\n",
			c.Family, c.Method, c.Tests, c.Significant, c.PValue)
	}
	if len(res.DatesLowerKPlusOne) > 0 {
		fmt.Printf("Dates excluded from the global statistic (fewer than k+1 active): %d\n",
			len(res.DatesLowerKPlusOne))
	}
	fmt.Printf("\nTables written to %s/%s_*.csv\n", outDir, prefix)

	return nil
}

func newSimulateCmd() *cobra.Command {
	var (
		individuals int
		moves       int
		latency     int
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "simulate [histories-csv] [details-csv] [focus-csv]",
		Short: "Generate a synthetic exposure study for testing",
		Long: `Generate a synthetic case-control study where individuals move on a
plane and accumulate exposure from fixed contamination sources.

The output files use the same format the run command reads.

Example: qcluster simulate -n 500 -m 3 -l 73 histories.csv details.csv focus.csv`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.SimConfig{
				Individuals: individuals,
				Moves:       moves,
				LatencyDays: latency,
				Seed:        seed,
			}

			sim, err := testkit.Simulate(cfg)
			if err != nil {
				return err
			}
			if err := testkit.WriteCSVs(sim, args[0], args[1], args[2]); err != nil {
				return err
			}

			fmt.Printf("Simulated %d individuals: %d cases, %d controls\n",
				individuals, sim.Cases, sim.Controls)
			fmt.Printf("Wrote %s, %s, %s\n", args[0], args[1], args[2])
			return nil
		},
	}

	defaults := testkit.DefaultSimConfig(42)
	cmd.Flags().IntVarP(&individuals, "individuals", "n", defaults.Individuals, "Number of individuals to simulate")
	cmd.Flags().IntVarP(&moves, "moves", "m", defaults.Moves, "Residence moves per individual")
	cmd.Flags().IntVarP(&latency, "latency", "l", defaults.LatencyDays, "Disease latency in days")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Random seed")

	return cmd
}
