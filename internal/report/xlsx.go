package report

import (
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

const xlsxSheet = "Uncertainty Goals"

// verdict font colours, ARGB
var verdictColors = map[model.Verdict]string{
	model.VerdictPassed:                    "FF008000",
	model.VerdictWithinVariationAcceptable: "FFFFA500",
	model.VerdictFailed:                    "FFFF0000",
}

// WriteXLSX writes one sheet laid out like the CSV, with each scenario split
// into a numeric value column and a verdict column.
func WriteXLSX(w io.Writer, c *model.UncertaintyGoalListContainer) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(xlsxSheet)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Priority", "Structure", "Objective"} {
		header.AddCell().SetString(h)
	}
	for _, name := range c.ScenarioNames() {
		header.AddCell().SetString(name)
		header.AddCell().SetString(name + " result")
	}

	styles := make(map[model.Verdict]*xlsx.Style, len(verdictColors))
	for v, color := range verdictColors {
		s := xlsx.NewStyle()
		s.Font.Color = color
		s.ApplyFont = true
		styles[v] = s
	}

	for _, l := range c.Lists {
		row := sheet.AddRow()
		row.AddCell().SetString(l.Priority.String())
		row.AddCell().SetString(l.StructureID)
		row.AddCell().SetString(l.Objective)
		for _, g := range l.Goals {
			value := row.AddCell()
			if math.IsNaN(g.Value) || math.IsInf(g.Value, 0) {
				value.SetString("")
			} else {
				value.SetFloatWithFormat(g.Value, "0.00")
			}
			result := row.AddCell()
			result.SetString(string(g.Result))
			if s, ok := styles[g.Result]; ok {
				value.SetStyle(s)
				result.SetStyle(s)
			}
		}
	}

	return eris.Wrap(f.Write(w), "report: write xlsx")
}
