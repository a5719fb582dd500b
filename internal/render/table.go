// Package render turns teacher records into the HTML body of the staff
// table shown on the import desk page.
package render

import (
	"bytes"
	"html/template"
	"io"
	"strconv"

	"github.com/kadrsp/importdesk/internal/roster"
)

// Columns is the fixed header row, in render order.
var Columns = []string{
	"ФИО",
	"Должность",
	"Общий стаж",
	"Педагогический стаж",
	"Профессиональный стаж",
	"Уровень образования",
	"Учёная степень",
	"Учёное звание",
	"Повышение квалификации",
}

// the first column carries the sort control the page script binds to
var headTemplate = template.Must(template.New("head").Parse(
	`<tr>{{range $i, $c := .}}{{if eq $i 0}}<th id="sort-name" class="sortable" title="Сортировать">{{$c}} <span id="sort-arrow"></span></th>{{else}}<th>{{$c}}</th>{{end}}{{end}}</tr>`))

// the template emits one <tr> per row and nothing else, so an empty slice
// renders an empty body
var rowsTemplate = template.Must(template.New("rows").Parse(
	`{{range .}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}`))

// Row maps a teacher to its display cells in [Columns] order.
func Row(t roster.Teacher) []string {
	return []string{
		t.FullName,
		t.Position,
		years(t.TotalExperience),
		years(t.TeachingExperience),
		years(t.ProfessionalExperience),
		t.EducationLevel,
		t.AcademicDegree,
		t.AcademicTitle,
		t.QualificationsDisplay(),
	}
}

func years(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// TableBody writes the complete table body for teachers to w. Cell text is
// HTML-escaped. The output depends only on teachers, so writing the same
// slice twice yields identical bytes.
func TableBody(w io.Writer, teachers []roster.Teacher) error {
	rows := make([][]string, len(teachers))
	for i, t := range teachers {
		rows[i] = Row(t)
	}
	return rowsTemplate.Execute(w, rows)
}

// TableBodyString is [TableBody] rendered into a string.
func TableBodyString(teachers []roster.Teacher) (string, error) {
	var buf bytes.Buffer
	if err := TableBody(&buf, teachers); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TableHead writes the header row for [Columns] to w.
func TableHead(w io.Writer) error {
	return headTemplate.Execute(w, Columns)
}

// TableHeadString is [TableHead] rendered into a string.
func TableHeadString() (string, error) {
	var buf bytes.Buffer
	if err := TableHead(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
