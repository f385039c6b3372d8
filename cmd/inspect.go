package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/uncertainty-goals/internal/plan"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <plan-bundle>",
	Short: "List a plan's clinical goals, uncertainty scenarios and validation issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("inspect"); err != nil {
			return err
		}

		b, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		grids, _ := cmd.Flags().GetBool("grids")
		formatPlan(os.Stdout, b, plan.Validate(b, grids))
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool("grids", false, "also check what min/max aggregation needs")
	rootCmd.AddCommand(inspectCmd)
}

// formatPlan writes the goal and scenario lists and the validation issues to out.
func formatPlan(out io.Writer, b *plan.Bundle, issues plan.Issues) {
	_, _ = fmt.Fprintf(out, "Patient: %s\nPlan (Course): %s (%s)\n\n", b.PatientID, b.PlanID, b.CourseID)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRIORITY\tSTRUCTURE\tOBJECTIVE\tNOMINAL")
	_, _ = fmt.Fprintln(w, "--------\t---------\t---------\t-------")
	for _, g := range b.Goals() {
		nominal := "-"
		if g.Scored() {
			nominal = fmt.Sprintf("%.2f (%s)", *g.ActualValue, g.Result)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Priority, g.StructureID, g.Label(), nominal)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCENARIO\tCALCULATED\tGRID")
	_, _ = fmt.Fprintln(w, "--------\t----------\t----")
	for _, s := range b.Scenarios {
		calculated := s.Dose.Calculated()
		grid := ""
		if s.Dose != nil {
			grid = s.Dose.GridFile
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\n", s.Name, calculated, grid)
	}
	_ = w.Flush()

	for _, e := range issues.Errors {
		_, _ = fmt.Fprintln(out, "error: "+e)
	}
	for _, warn := range issues.Warnings {
		_, _ = fmt.Fprintln(out, "warning: "+warn)
	}
}
