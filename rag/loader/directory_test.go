package loader

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryLoader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "b_handbook.md", "# Handbook\n\nWelcome aboard.")
	writeFile(t, dir, "a_notice.txt", "Notice\nParking lot closed.")
	writeFile(t, dir, "forms/c_form.html", "<h1>Expense Form</h1><p>Attach receipts.</p>")
	writeFile(t, dir, "logo.png", "binary")
	writeFile(t, dir, "forms/d_roster.csv", "title,owner\nOn-call Roster,Ops\n")

	docs, err := NewDirectoryLoader(dir, WithDepartment("HR")).Load(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 4)

	assert.Equal(t, "doc_a_notice", docs[0].ID)
	assert.Equal(t, "doc_b_handbook", docs[1].ID)
	assert.Equal(t, "doc_c_form", docs[2].ID)
	assert.Equal(t, "Expense Form", docs[2].Title)
	assert.Equal(t, "doc_d_roster_001", docs[3].ID)
	assert.Equal(t, "On-call Roster", docs[3].Title)
	for _, d := range docs {
		assert.Equal(t, "HR", d.Department)
	}

	_, err = NewDirectoryLoader(dir + "/missing").Load(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &MarkdownLoader{}, ForFile("a.MD"))
	assert.IsType(t, &HTMLLoader{}, ForFile("a.htm"))
	assert.IsType(t, &TextLoader{}, ForFile("a.txt"))
	assert.IsType(t, &CSVLoader{}, ForFile("a.CSV"))
	assert.Nil(t, ForFile("a.pdf"))
}

func TestLoadDataset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "Alpha")
	b := writeFile(t, dir, "b.md", "# Beta\n\nSecond.")

	ds, err := LoadDataset(ctx, NewTextLoader(a), NewMarkdownLoader(b))
	require.NoError(t, err)
	require.Len(t, ds.Documents, 2)
	assert.Equal(t, "Alpha", ds.Documents[0].Title)
	assert.Equal(t, "Beta", ds.Documents[1].Title)
	assert.Equal(t, 2, ds.RecordCount())

	_, err = LoadDataset(ctx, NewTextLoader(dir+"/none.txt"))
	assert.Error(t, err)
}
