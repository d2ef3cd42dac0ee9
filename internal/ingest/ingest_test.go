package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// --- Importers ---

func TestMarkdownImporter_FrontMatter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "jane.md", "---\r\n"+
		"id: Jane Smith\r\n"+
		"title: Dr. Jane Smith\r\n"+
		"institution: Mass General\r\n"+
		"---\r\n"+
		"Email: jane@hosp.org\r\n")

	imp := &MarkdownImporter{}
	require.True(t, imp.CanHandle(path))
	got, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "jane-smith", got[0].ID)
	assert.Equal(t, "Dr. Jane Smith", got[0].Name)
	assert.Equal(t, "Institution: Mass General\nEmail: jane@hosp.org", got[0].Content)
	assert.Equal(t, path, got[0].SourceFile)
}

func TestMarkdownImporter_NoFrontMatter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Lab Notes.markdown", "# Lab\n\nPhone: (555) 123-4567\n")
	got, err := (&MarkdownImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lab-notes", got[0].ID)
	assert.Empty(t, got[0].Name)
	assert.Equal(t, "# Lab\n\nPhone: (555) 123-4567", got[0].Content)
}

func TestMarkdownImporter_BadFrontMatter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.md", "---\nid: [unclosed\n---\nbody\n")
	_, err := (&MarkdownImporter{}).Import(context.Background(), path)
	assert.Error(t, err)
}

func TestPlainTextImporter(t *testing.T) {
	imp := &PlainTextImporter{}
	assert.True(t, imp.CanHandle("notes.txt"))
	assert.True(t, imp.CanHandle("README"))
	assert.False(t, imp.CanHandle("photo.png"))

	dir := t.TempDir()
	path := writeFile(t, dir, "Jane_Smith.txt", "\ufeffEmail: jane@hosp.org\n\n")
	got, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jane-smith", got[0].ID)
	assert.Equal(t, "Email: jane@hosp.org", got[0].Content)

	empty := writeFile(t, dir, "empty.txt", "  \n")
	got, err = imp.Import(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJSONImporter_Array(t *testing.T) {
	path := writeFile(t, t.TempDir(), "people.json", `[
		{"id": "P1", "name": "Jane", "contact": {"email": "j@x.org"}, "npi": 1234567893},
		{"name": "Bob", "content": "Email: bob@x.org\r\n"},
		"not an object",
		{"empty": ""}
	]`)

	got, err := (&JSONImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "Jane", got[0].Name)
	assert.Equal(t, "Email: j@x.org\nName: Jane\nNpi: 1234567893", got[0].Content)

	assert.Equal(t, "people-2", got[1].ID)
	assert.Equal(t, "Bob", got[1].Name)
	assert.Equal(t, "Email: bob@x.org", got[1].Content)
}

func TestJSONImporter_SingleObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "jane.json", `{"principal_investigator": "Dr. Jane Smith", "degrees": ["MD", "PhD"]}`)
	got, err := (&JSONImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jane", got[0].ID)
	assert.Equal(t, "Degrees: MD; PhD\nPrincipal Investigator: Dr. Jane Smith", got[0].Content)
}

func TestJSONImporter_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{"id": `)
	_, err := (&JSONImporter{}).Import(context.Background(), path)
	assert.Error(t, err)
}

func TestYAMLImporter_MultiDoc(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lab.yaml", `id: a
phone: "(555) 123-4567"
---
id: b
text: |
  Fax: 555-0100
---
`)
	imp := &YAMLImporter{}
	assert.True(t, imp.CanHandle("x.yml"))
	got, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "Phone: (555) 123-4567", got[0].Content)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "Fax: 555-0100", got[1].Content)
}

func TestYAMLImporter_NumbersRenderAsIntegers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "npi.yml", "npi: 1234567893\nzip: \"02115\"\n")
	got, err := (&YAMLImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Npi: 1234567893\nZip: 02115", got[0].Content)
}

func TestCSVImporter(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "contacts.csv", "\ufeffid,name,contact_email\n"+
		",Jane Smith,jane@hosp.org\n"+
		"X1,Bob,\n"+
		",,\n")

	got, err := (&CSVImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "contacts-row2", got[0].ID)
	assert.Equal(t, "Jane Smith", got[0].Name)
	assert.Equal(t, "Name: Jane Smith\nContact Email: jane@hosp.org", got[0].Content)
	assert.Equal(t, 2, got[0].SourceLine)

	assert.Equal(t, "x1", got[1].ID)
	assert.Equal(t, "Name: Bob", got[1].Content)
	assert.Equal(t, 3, got[1].SourceLine)
}

func TestCSVImporter_TSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "staff.tsv", "name\tphone\nJane\t(555) 123-4567\n")
	got, err := (&CSVImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Name: Jane\nPhone: (555) 123-4567", got[0].Content)
}

func TestCSVImporter_Empty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", "")
	got, err := (&CSVImporter{}).Import(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- Engine ---

func TestImportDir_NewUpdatedUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := NewEngine(s)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Email: a@x.org")
	writeFile(t, dir, "b.md", "Phone: (555) 123-4567")
	writeFile(t, dir, ".hidden.txt", "Email: h@x.org")
	writeFile(t, dir, "photo.png", "binary")
	writeFile(t, dir, "sub/c.txt", "Email: c@x.org")

	r, err := e.ImportDir(ctx, dir, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.FilesScanned)
	assert.Equal(t, 2, r.FilesImported)
	assert.Equal(t, 2, r.ProfilesNew)
	assert.Empty(t, r.Errors)

	p, err := s.GetProfile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Email: a@x.org", p.Content)

	r, err = e.ImportDir(ctx, dir, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.ProfilesNew)
	assert.Equal(t, 2, r.ProfilesUnchanged)

	writeFile(t, dir, "a.txt", "Email: a2@x.org")
	r, err = e.ImportDir(ctx, dir, ImportOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, r.FilesScanned)
	assert.Equal(t, 1, r.ProfilesNew)
	assert.Equal(t, 1, r.ProfilesUpdated)
	assert.Equal(t, 1, r.ProfilesUnchanged)
}

func TestImportFile_DryRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := NewEngine(s)
	dir := t.TempDir()

	path := writeFile(t, dir, "jane.txt", "Email: jane@hosp.org")
	r, err := e.ImportFile(ctx, path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, r.ProfilesNew)
	_, err = s.GetProfile(ctx, "jane")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.ImportFile(ctx, path, ImportOptions{})
	require.NoError(t, err)

	r, err = e.ImportFile(ctx, path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, r.ProfilesUnchanged)

	writeFile(t, dir, "jane.txt", "Email: jane.smith@hosp.org")
	r, err = e.ImportFile(ctx, path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, r.ProfilesUpdated)

	p, err := s.GetProfile(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, "Email: jane@hosp.org", p.Content)
}

func TestImportFile_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Email: a@x.org")
	r, err := NewEngine(newTestStore(t)).ImportFile(context.Background(), dir, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.ProfilesNew)
}

func TestImportFile_Missing(t *testing.T) {
	_, err := NewEngine(newTestStore(t)).ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), ImportOptions{})
	assert.Error(t, err)
}

func TestImportFile_Skips(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(newTestStore(t))
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		opts    ImportOptions
		errors  int
		message string
	}{
		{"too large", "big.txt", "Email: someone@example.org", ImportOptions{MaxFileSize: 5}, 1, "too large"},
		{"parse error", "bad.json", "{", ImportOptions{}, 1, "parsing JSON"},
		{"empty", "empty.txt", "", ImportOptions{}, 0, ""},
		{"unsupported", "photo.png", "x", ImportOptions{}, 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.file, tc.content)
			r, err := e.ImportFile(ctx, path, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, 1, r.FilesScanned)
			assert.Equal(t, 1, r.FilesSkipped)
			assert.Equal(t, 0, r.FilesImported)
			require.Len(t, r.Errors, tc.errors)
			if tc.errors > 0 {
				assert.Contains(t, r.Errors[0].Message, tc.message)
				assert.Equal(t, path, r.Errors[0].File)
			}
		})
	}
}

// rejectingStore refuses to write the profile with id "bad".
type rejectingStore struct{ saved []string }

func (s *rejectingStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
}

func (s *rejectingStore) PutProfile(_ context.Context, p *model.Profile) (bool, error) {
	if p.ID == "bad" {
		return false, errors.New("constraint failed")
	}
	s.saved = append(s.saved, p.ID)
	return true, nil
}

func TestImportFile_StoreErrorIsPerProfile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "roster.csv", "id,email\nbad,a@x.org\nok,b@x.org\n")

	s := &rejectingStore{}
	r, err := NewEngine(s).ImportFile(context.Background(), path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.FilesImported)
	assert.Equal(t, 1, r.ProfilesNew)
	assert.Equal(t, []string{"ok"}, s.saved)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, 2, r.Errors[0].Line)
	assert.Contains(t, r.Errors[0].Message, "constraint failed")
}

func TestImportDir_ProgressAndCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Email: a@x.org")
	writeFile(t, dir, "b.txt", "Email: b@x.org")

	var seen []int
	r, err := NewEngine(newTestStore(t)).ImportDir(context.Background(), dir, ImportOptions{
		ProgressFn: func(current, total int, file string) {
			assert.Equal(t, 2, total)
			seen = append(seen, current)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, r.ProfilesNew)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEngine(newTestStore(t)).ImportDir(ctx, dir, ImportOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportResult_Add(t *testing.T) {
	r := &ImportResult{FilesScanned: 1, ProfilesNew: 2, Errors: []ImportError{{File: "a"}}}
	r.Add(&ImportResult{FilesScanned: 2, FilesSkipped: 1, ProfilesUpdated: 3, Errors: []ImportError{{File: "b"}}})
	assert.Equal(t, 3, r.FilesScanned)
	assert.Equal(t, 1, r.FilesSkipped)
	assert.Equal(t, 2, r.ProfilesNew)
	assert.Equal(t, 3, r.ProfilesUpdated)
	assert.Len(t, r.Errors, 2)
}

func TestFormatImportResult(t *testing.T) {
	out := FormatImportResult(&ImportResult{
		FilesScanned:  1200,
		FilesImported: 1199,
		FilesSkipped:  1,
		ProfilesNew:   3,
		Errors:        []ImportError{{File: "bad.json", Message: "parsing JSON"}, {File: "r.csv", Line: 4, Message: "id is required"}},
	})
	assert.Contains(t, out, "1,200 scanned, 1,199 imported, 1 skipped")
	assert.Contains(t, out, "3 new, 0 updated, 0 unchanged")
	assert.Contains(t, out, "Errors:   2")
	assert.Contains(t, out, "bad.json: parsing JSON")
	assert.Contains(t, out, "r.csv:4: id is required")

	assert.NotContains(t, FormatImportResult(&ImportResult{}), "Errors")
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Jane Smith":   "jane-smith",
		"  --P1--  ":   "p1",
		"Dr. J. Smith": "dr-j-smith",
		"___":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, slug(in), in)
	}
}
