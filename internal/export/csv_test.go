package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"toolshed/pkg/models"
)

var grep = models.Tool{
	Name:        "grep",
	Description: "Search text",
	WhenWhy:     "Find lines, fast",
	How:         "grep [opts] pattern file",
	Flags: []models.Flag{
		{Flag: "-i", Explanation: "ignore case"},
		{Flag: "-r", Explanation: "recurse"},
	},
	Examples: []models.Example{
		{Command: `grep -rn "TODO" .`, Explanation: "list todos"},
	},
	Tips: models.Tips{
		{Name: "speed", Text: "use -F for fixed strings"},
		{Name: "color", Text: "--color=auto"},
	},
	Advanced: models.Advanced{
		AdvancedTips: []string{"PCRE with -P", "context with -C"},
		Tips:         []string{"pipe into xargs"},
	},
}

func TestRow(t *testing.T) {
	want := []string{
		"grep",
		"Search text",
		"Find lines, fast",
		"",
		"grep [opts] pattern file",
		"-i => ignore case | -r => recurse",
		`grep -rn "TODO" . => list todos`,
		"speed: use -F for fixed strings | color: --color=auto",
		"PCRE with -P | context with -C",
		"pipe into xargs",
	}
	if diff := cmp.Diff(want, Row(grep)); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestRow_EmptyCollections(t *testing.T) {
	row := Row(models.Tool{Name: "true"})
	require.Len(t, row, len(Header))
	require.Equal(t, "true", row[0])
	for i, v := range row[1:] {
		require.Emptyf(t, v, "column %s", Header[i+1])
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []models.Tool{grep, {Name: "ls"}}))

	require.Contains(t, buf.String(), "\r\n")

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, Header, records[0])
	require.Equal(t, Row(grep), records[1])
	require.Equal(t, "ls", records[2][0])
}

func TestWriteFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "tools_dataset.csv")
	require.NoError(t, WriteFile(out, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "name,description,when_why,notes,how,flags,examples,tips,advanced_tips,advanced_extra\r\n", string(data))
}
