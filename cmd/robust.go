package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uncertainty-goals/internal/dosegrid"
	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/plan"
	"github.com/sells-group/uncertainty-goals/internal/robust"
)

var robustCmd = &cobra.Command{
	Use:   "robust <plan-bundle>",
	Short: "Build voxel-wise min and max doses over the uncertainty scenarios",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c := *cfg
		if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
			c.Robust.Workers = v
		}
		if err := c.Validate("robust"); err != nil {
			return err
		}
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = c.Report.OutputDir
		}

		b, err := loadPlan(args[0], true)
		if err != nil {
			return err
		}

		summary, robustErr := buildRobustPlans(ctx, b, robust.New(c.Robust.Workers), outDir)

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			id, err := recordRun(ctx, st, model.RunKindRobust, b.Ref(), &model.RunResult{Robust: summary}, robustErr)
			if err != nil {
				return err
			}
			zap.L().Info("robust: run saved", zap.String("run_id", id))
		}
		if robustErr != nil {
			return robustErr
		}

		printRobustSummary(os.Stdout, summary)
		return nil
	},
}

func init() {
	robustCmd.Flags().Int("workers", 0, "goroutines per aggregation pass (default from config)")
	robustCmd.Flags().String("out", "", "output directory for derived plans (default from config)")
	robustCmd.Flags().Bool("save", false, "record the run in the run history store")
	rootCmd.AddCommand(robustCmd)
}

// buildRobustPlans aggregates the scenario grids of b and writes the min and
// max plans, each as a grid file plus manifest, into outDir.
func buildRobustPlans(ctx context.Context, b *plan.Bundle, agg *robust.Aggregator, outDir string) (*model.RobustSummary, error) {
	nominalSrc, ok := b.NominalGrid()
	if !ok {
		return nil, eris.New("robust: plan has no nominal dose grid")
	}
	nominal, err := nominalSrc.Load(ctx)
	if err != nil {
		return nil, err
	}

	sources := b.ScenarioGrids()
	grids := make([]robust.Grid, 0, len(sources))
	for _, s := range sources {
		grids = append(grids, s)
	}

	res, err := agg.Aggregate(ctx, nominal, grids)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "robust: create output dir %s", outDir)
	}

	summary := &model.RobustSummary{
		PlanID:      b.PlanID,
		MinPlanID:   plan.DerivedPlanID(b.PlanID, plan.DerivedMin),
		MaxPlanID:   plan.DerivedPlanID(b.PlanID, plan.DerivedMax),
		Extents:     nominal.Extents,
		Scenarios:   res.Scenarios,
		MinReplaced: res.MinReplaced,
		MaxReplaced: res.MaxReplaced,
	}

	for _, d := range []struct {
		kind plan.DerivedKind
		grid *model.DoseGrid
	}{
		{plan.DerivedMin, res.Min},
		{plan.DerivedMax, res.Max},
	} {
		id := plan.DerivedPlanID(b.PlanID, d.kind)
		gridFile := id + ".ugdg"
		if err := dosegrid.WriteFile(filepath.Join(outDir, gridFile), d.grid); err != nil {
			return nil, err
		}
		manifest := plan.NewDerivedPlan(b, d.kind, gridFile, d.grid.Extents, res.Scenarios)
		if err := plan.WriteManifest(filepath.Join(outDir, id+".yaml"), manifest); err != nil {
			return nil, err
		}
		zap.L().Info("robust: derived plan written",
			zap.String("plan_id", id),
			zap.String("dir", outDir),
		)
	}

	return summary, nil
}

func printRobustSummary(out io.Writer, s *model.RobustSummary) {
	printer.Fprintf(out, "Plan %s: %d scenarios aggregated over %d voxels (%s)\n",
		s.PlanID, len(s.Scenarios), s.Extents.Len(), s.Extents)
	printer.Fprintf(out, "  %s: %d voxels lowered\n", s.MinPlanID, s.MinReplaced)
	printer.Fprintf(out, "  %s: %d voxels raised\n", s.MaxPlanID, s.MaxReplaced)
	for _, name := range s.Scenarios {
		fmt.Fprintln(out, "  - "+name)
	}
}
