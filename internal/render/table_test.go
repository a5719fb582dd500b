package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadrsp/importdesk/internal/roster"
)

func intPtr(v int) *int { return &v }

func TestTableBody_Empty(t *testing.T) {
	for i := 0; i < 3; i++ {
		out, err := TableBodyString([]roster.Teacher{})
		require.NoError(t, err)
		assert.Empty(t, out)
	}

	out, err := TableBodyString(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTableBody_OneRowPerRecord(t *testing.T) {
	teachers := []roster.Teacher{
		{
			FullName:        "Иванов И.И.",
			Position:        "профессор",
			EducationLevel:  "высшее",
			TotalExperience: intPtr(25),
			Qualifications: []roster.Qualification{
				{CourseName: "Курс A", Year: 2022},
				{CourseName: "Курс B", Year: 2023},
			},
		},
		{FullName: "Петрова П.П."},
	}

	out, err := TableBodyString(teachers)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, "<tr>"))
	assert.Equal(t, 2*len(Columns), strings.Count(out, "<td>"))
	assert.Contains(t, out, "<td>Иванов И.И.</td><td>профессор</td><td>25</td><td></td><td></td><td>высшее</td>")
	assert.Contains(t, out, "<td>Курс A, Курс B</td>")
}

func TestTableBody_Idempotent(t *testing.T) {
	teachers := []roster.Teacher{{FullName: "A"}, {FullName: "B"}}

	first, err := TableBodyString(teachers)
	require.NoError(t, err)
	second, err := TableBodyString(teachers)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTableBody_EscapesMarkup(t *testing.T) {
	out, err := TableBodyString([]roster.Teacher{{FullName: `<script>alert("x")</script>`}})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRow_ColumnCount(t *testing.T) {
	assert.Len(t, Row(roster.Teacher{}), len(Columns))
}

func TestTableHead_RendersColumns(t *testing.T) {
	out, err := TableHeadString()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<tr>"))
	assert.Equal(t, len(Columns), strings.Count(out, "</th>"))
	assert.Contains(t, out, `<th id="sort-name" class="sortable" title="Сортировать">ФИО <span id="sort-arrow"></span></th>`)
	for _, c := range Columns[1:] {
		assert.Contains(t, out, "<th>"+c+"</th>")
	}
}
