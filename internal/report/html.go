package report

import (
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/uncertainty-goals/internal/model"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"value":   formatValue,
	"verdict": func(v model.Verdict) string { return strings.ToLower(string(v)) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Clinical Goals for Plan Uncertainty Doses</title>
<style>
table { border-spacing: 10px; border-collapse: collapse; }
td { padding: 10px; text-align: center; }
.tr-last { border-bottom: 1pt solid black; }
.headerEntry { background-color: #00A9E0; color: white; padding: 10px; }
.passed { color: green; }
.failed { color: red; }
.withinvariationacceptable { color: orange; }
</style>
</head>
<body>
<h1>Clinical Goals for Plan Uncertainty Doses</h1>
<h2>Patient: {{.C.PatientID}}</h2>
<h2>Plan (Course): {{.C.PlanID}} ({{.C.CourseID}})</h2>
<h2>{{.Generated}}</h2>
{{if .C.Lists}}
<table>
<thead>
<tr class="tr-last">
<th class="headerEntry">Priority</th>
<th class="headerEntry">Structure</th>
<th class="headerEntry">Objective</th>
{{- range .C.ScenarioNames}}
<th class="headerEntry">{{.}}</th>
{{- end}}
</tr>
</thead>
<tbody>
{{- $last := .Last}}
{{- range $i, $l := .C.Lists}}
<tr{{if eq $i $last}} class="tr-last"{{end}}>
<td>{{$l.Priority}}</td>
<td>{{$l.StructureID}}</td>
<td>{{$l.Objective}}</td>
{{- range $l.Goals}}
<td class="{{verdict .Result}}">{{value .Value}}</td>
{{- end}}
</tr>
{{- end}}
</tbody>
</table>
{{else}}
<p>No clinical goals were evaluated.</p>
{{end}}
</body>
</html>
`))

// WriteHTML writes a standalone HTML table. Priorities show as P1..P5 and
// each value cell is classed by its lower-cased verdict.
func WriteHTML(w io.Writer, c *model.UncertaintyGoalListContainer, generated time.Time) error {
	data := struct {
		C         *model.UncertaintyGoalListContainer
		Generated string
		Last      int
	}{
		C:         c,
		Generated: generated.Format("Monday, January 2, 2006 15:04:05"),
		Last:      len(c.Lists) - 1,
	}
	return eris.Wrap(htmlTemplate.Execute(w, data), "report: render html")
}
