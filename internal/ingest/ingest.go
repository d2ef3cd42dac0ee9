// Package ingest imports profiles from files into the store.
//
// Each supported format (Markdown, plain text, JSON, YAML, CSV) has its own
// importer implementing Importer. The engine picks one by file extension.
// Structured formats are flattened into "Key: value" lines, the shape the
// flexible extraction pass reads.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/store"
)

// RawProfile is a parsed profile ready for storage.
type RawProfile struct {
	ID         string
	Name       string
	Content    string
	SourceFile string // absolute path
	SourceLine int    // 1-indexed; rows and array elements start past line 1
}

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file into profiles.
	Import(ctx context.Context, path string) ([]RawProfile, error)
}

// ProfileStore is the subset of store.Store the engine writes through.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	PutProfile(ctx context.Context, p *model.Profile) (bool, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned      int
	FilesImported     int
	FilesSkipped      int
	ProfilesNew       int
	ProfilesUpdated   int
	ProfilesUnchanged int
	Errors            []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.ProfilesNew += other.ProfilesNew
	r.ProfilesUpdated += other.ProfilesUpdated
	r.ProfilesUnchanged += other.ProfilesUnchanged
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string
	Line    int
	Message string
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 10MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Engine dispatches files to importers and writes the profiles.
type Engine struct {
	store     ProfileStore
	importers []Importer
}

// NewEngine creates an import engine writing to s. The plain text importer
// goes last: it also claims extensionless files.
func NewEngine(s ProfileStore) *Engine {
	return &Engine{
		store: s,
		importers: []Importer{
			&MarkdownImporter{},
			&JSONImporter{},
			&YAMLImporter{},
			&CSVImporter{},
			&PlainTextImporter{},
		},
	}
}

func (e *Engine) importerFor(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// ImportFile imports one file, or a directory via ImportDir.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return e.ImportDir(ctx, path, opts)
	}
	if opts.ProgressFn != nil {
		opts.ProgressFn(1, 1, path)
	}
	return e.importOne(ctx, path, info.Size(), opts), nil
}

// ImportDir imports every supported file in dir. Hidden files and
// directories are skipped; subdirectories only with opts.Recursive.
func (e *Engine) ImportDir(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error) {
	type candidate struct {
		path string
		size int64
	}
	var files []candidate

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if e.importerFor(path) == nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, candidate{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	total := &ImportResult{}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), f.path)
		}
		total.Add(e.importOne(ctx, f.path, f.size, opts))
	}
	return total, nil
}

func (e *Engine) importOne(ctx context.Context, path string, size int64, opts ImportOptions) *ImportResult {
	result := &ImportResult{FilesScanned: 1}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if size > maxSize {
		result.FilesSkipped = 1
		result.Errors = append(result.Errors, ImportError{File: path, Message: fmt.Sprintf("file too large (%s > %s)", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(maxSize)))})
		return result
	}

	imp := e.importerFor(path)
	if imp == nil {
		result.FilesSkipped = 1
		return result
	}
	profiles, err := imp.Import(ctx, path)
	if err != nil {
		result.FilesSkipped = 1
		result.Errors = append(result.Errors, ImportError{File: path, Message: err.Error()})
		return result
	}
	if len(profiles) == 0 {
		result.FilesSkipped = 1
		return result
	}

	result.FilesImported = 1
	for _, raw := range profiles {
		p := &model.Profile{ID: raw.ID, Name: raw.Name, Content: raw.Content}
		status, err := e.write(ctx, p, opts.DryRun)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{File: path, Line: raw.SourceLine, Message: err.Error()})
			continue
		}
		switch status {
		case statusNew:
			result.ProfilesNew++
		case statusUpdated:
			result.ProfilesUpdated++
		default:
			result.ProfilesUnchanged++
		}
	}
	return result
}

type writeStatus int

const (
	statusUnchanged writeStatus = iota
	statusNew
	statusUpdated
)

func (e *Engine) write(ctx context.Context, p *model.Profile, dryRun bool) (writeStatus, error) {
	existing, err := e.store.GetProfile(ctx, p.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return statusUnchanged, err
	}
	if dryRun {
		switch {
		case !exists:
			return statusNew, nil
		case store.HashProfileContent(existing.Name, existing.Content) == store.HashProfileContent(p.Name, p.Content):
			return statusUnchanged, nil
		default:
			return statusUpdated, nil
		}
	}

	changed, err := e.store.PutProfile(ctx, p)
	switch {
	case err != nil:
		return statusUnchanged, err
	case !changed:
		return statusUnchanged, nil
	case exists:
		return statusUpdated, nil
	default:
		return statusNew, nil
	}
}

var slugRE = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a file name or field value into a profile id.
func slug(s string) string {
	return strings.Trim(slugRE.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// baseID is the slug of a file's name without its extension.
func baseID(path string) string {
	base := filepath.Base(path)
	return slug(strings.TrimSuffix(base, filepath.Ext(base)))
}

// FormatImportResult renders a human-readable summary.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Import complete:\n")
	fmt.Fprintf(&b, "  Files:    %s scanned, %s imported, %s skipped\n",
		humanize.Comma(int64(r.FilesScanned)), humanize.Comma(int64(r.FilesImported)), humanize.Comma(int64(r.FilesSkipped)))
	fmt.Fprintf(&b, "  Profiles: %s new, %s updated, %s unchanged\n",
		humanize.Comma(int64(r.ProfilesNew)), humanize.Comma(int64(r.ProfilesUpdated)), humanize.Comma(int64(r.ProfilesUnchanged)))
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "  Errors:   %d\n", len(r.Errors))
		for _, e := range r.Errors {
			if e.Line > 0 {
				fmt.Fprintf(&b, "    %s:%d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(&b, "    %s: %s\n", e.File, e.Message)
			}
		}
	}
	return b.String()
}
