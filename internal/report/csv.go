package report

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

// WriteCSV writes one row per goal. Columns after the objective are taken
// from the first goal list; cells read "value (verdict)".
func WriteCSV(w io.Writer, c *model.UncertaintyGoalListContainer) error {
	cw := csv.NewWriter(w)

	header := append([]string{"Priority", "Structure", "Objective"}, c.ScenarioNames()...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}

	for _, l := range c.Lists {
		row := []string{l.Priority.String(), l.StructureID, l.Objective}
		for _, g := range l.Goals {
			row = append(row, formatValue(g.Value)+" ("+string(g.Result)+")")
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}
