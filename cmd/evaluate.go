package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uncertainty-goals/internal/config"
	"github.com/sells-group/uncertainty-goals/internal/goal"
	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/plan"
	"github.com/sells-group/uncertainty-goals/internal/report"
	"github.com/sells-group/uncertainty-goals/internal/scenario"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <plan-bundle>",
	Short: "Evaluate clinical goals on the nominal and uncertainty scenario doses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		evalCfg := applyEvaluationOverrides(cmd, cfg.Evaluation)
		reportCfg := applyReportOverrides(cmd, cfg.Report)
		c := *cfg
		c.Evaluation, c.Report = evalCfg, reportCfg
		if err := c.Validate("evaluate"); err != nil {
			return err
		}

		formats, err := report.ParseFormats(reportCfg.Formats)
		if err != nil {
			return err
		}

		b, err := loadPlan(args[0], false)
		if err != nil {
			return err
		}

		ev, err := newEvaluator(evalCfg)
		if err != nil {
			return err
		}

		container, evalErr := ev.Evaluate(ctx, b)

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			id, err := recordRun(ctx, st, model.RunKindGoals, b.Ref(), &model.RunResult{Goals: container}, evalErr)
			if err != nil {
				return err
			}
			zap.L().Info("evaluate: run saved", zap.String("run_id", id))
		}
		if evalErr != nil {
			return eris.Wrap(evalErr, "evaluate")
		}

		w := &report.Writer{Dir: reportCfg.OutputDir, Formats: formats}
		paths, err := w.WriteAll(container)
		if err != nil {
			return err
		}

		printEvaluationSummary(os.Stdout, container)
		for _, p := range paths {
			fmt.Fprintln(os.Stdout, p)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().Int("workers", 0, "concurrent goal evaluations (default from config)")
	evaluateCmd.Flags().String("undefined-verdict", "", "verdict for undefined values: not_available or failed (default from config)")
	evaluateCmd.Flags().Float64("bin-width", 0, "DVH bin width requested from the plan (default from config)")
	evaluateCmd.Flags().String("nominal-label", "", "name of the nominal column (default from config)")
	evaluateCmd.Flags().String("out", "", "output directory (default from config)")
	evaluateCmd.Flags().String("formats", "", "comma-separated output formats: json,csv,html,xlsx (default from config)")
	evaluateCmd.Flags().Bool("save", false, "record the run in the run history store")
	rootCmd.AddCommand(evaluateCmd)
}

// loadPlan reads and validates a bundle, logging warnings.
func loadPlan(path string, requireGrids bool) (*plan.Bundle, error) {
	b, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	issues := plan.Validate(b, requireGrids)
	for _, w := range issues.Warnings {
		zap.L().Warn("plan: "+w, zap.String("plan_id", b.PlanID))
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func newEvaluator(c config.EvaluationConfig) (*scenario.Evaluator, error) {
	policy, err := goal.ParseUndefinedPolicy(c.UndefinedVerdict)
	if err != nil {
		return nil, err
	}
	return scenario.New(scenario.Options{
		Workers:      c.Workers,
		BinWidth:     c.DVHBinWidth,
		NominalLabel: c.NominalLabel,
		Undefined:    policy,
	}), nil
}

// applyEvaluationOverrides returns a copy of the base config with CLI flag overrides applied.
func applyEvaluationOverrides(cmd *cobra.Command, base config.EvaluationConfig) config.EvaluationConfig {
	c := base

	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		c.Workers = v
	}
	if v, _ := cmd.Flags().GetString("undefined-verdict"); v != "" {
		c.UndefinedVerdict = v
	}
	if v, _ := cmd.Flags().GetFloat64("bin-width"); v > 0 {
		c.DVHBinWidth = v
	}
	if v, _ := cmd.Flags().GetString("nominal-label"); v != "" {
		c.NominalLabel = v
	}
	return c
}

func applyReportOverrides(cmd *cobra.Command, base config.ReportConfig) config.ReportConfig {
	c := base

	if v, _ := cmd.Flags().GetString("out"); v != "" {
		c.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("formats"); v != "" {
		c.Formats = splitAndTrim(v)
	}
	return c
}

func printEvaluationSummary(out io.Writer, c *model.UncertaintyGoalListContainer) {
	counts := c.VerdictCounts()
	printer.Fprintf(out, "Plan %s (%s), patient %s: %d goals x %d doses\n",
		c.PlanID, c.CourseID, c.PatientID, len(c.Lists), len(c.ScenarioNames()))
	printer.Fprintf(out, "  %s: %d  %s: %d  %s: %d  %s: %d\n",
		model.VerdictPassed, counts[model.VerdictPassed],
		model.VerdictWithinVariationAcceptable, counts[model.VerdictWithinVariationAcceptable],
		model.VerdictFailed, counts[model.VerdictFailed],
		model.VerdictNotAvailable, counts[model.VerdictNotAvailable],
	)
}
