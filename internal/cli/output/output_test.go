package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadRow struct {
	Node   string `json:"node" yaml:"node"`
	Status string `json:"status" yaml:"status"`
}

type reloadRows []reloadRow

func (r reloadRows) Table() *Table {
	t := NewTable("NODE", "STATUS")
	for _, row := range r {
		t.AddRow(row.Node, row.Status)
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTableFormatter(t *testing.T) {
	rows := reloadRows{{"node-a", "ok"}, {"node-bb", ""}}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, rows))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NODE     STATUS", lines[0])
	assert.Equal(t, "node-a   ok", lines[1])
	assert.Equal(t, "node-bb  -", lines[2])
}

func TestTableFormatter_NoHeaders(t *testing.T) {
	tbl := NewTable("A", "B")
	tbl.AddRow("1", "2")

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{NoHeaders: true}).Format(&buf, tbl))
	assert.Equal(t, "1  2\n", buf.String())
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]string{"status": "healthy"}))
	assert.JSONEq(t, `{"status":"healthy"}`, buf.String())
}

func TestJSONAndYAML(t *testing.T) {
	rows := reloadRows{{"node-a", "ok"}}

	var js bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&js, rows))
	assert.JSONEq(t, `[{"node":"node-a","status":"ok"}]`, js.String())

	var ym bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&ym, rows))
	assert.Equal(t, "- node: node-a\n  status: ok\n", ym.String())
}
