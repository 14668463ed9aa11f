package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-cellshade/benchmark"
)

func (a *app) benchCmd() *cobra.Command {
	var (
		set        string
		scenarios  string
		iterations int
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "bench [image...]",
		Short: "Measure pipeline throughput",
		Long: `Bench runs a scenario set against the configured backend and writes JSON and
CSV results. Images given as arguments form the corpus; without any, a
synthetic test card is used.

Sets: quick, resolutions, color-levels, smoothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				scenarioSet *benchmark.ScenarioSet
				err         error
			)
			if scenarios != "" {
				scenarioSet, err = benchmark.LoadScenarioSet(scenarios)
			} else {
				scenarioSet, err = benchmark.Predefined(set, iterations)
			}
			if err != nil {
				return err
			}

			suite := benchmark.NewSuite(a.pipeline(), outputDir)
			if len(args) > 0 {
				if err := suite.LoadCorpus(args...); err != nil {
					return err
				}
			}
			suite.AddScenarioSet(scenarioSet)

			if err := suite.RunAllScenarios(cmd.Context()); err != nil {
				return err
			}
			results, summary, err := suite.SaveResults()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), results)
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&set, "set", benchmark.SetQuick, "predefined scenario set")
	f.StringVar(&scenarios, "scenarios", "", "JSON scenario set file (overrides --set)")
	f.IntVar(&iterations, "iterations", 10, "measured runs per scenario")
	f.StringVarP(&outputDir, "output", "o", "benchmark_results", "results directory")
	return cmd
}
