package stage

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/watchgraft/internal/ir"
)

// Manifest describes a staged directory.
type Manifest struct {
	StageVersion string               `yaml:"stage_version"`
	ToolVersion  string               `yaml:"tool_version"`
	RunID        string               `yaml:"run_id"`
	CreatedAt    time.Time            `yaml:"created_at"`
	Source       string               `yaml:"source"`
	Files        map[string]FileEntry `yaml:"files"`
}

// FileEntry describes one staged table.
type FileEntry struct {
	Rows    int      `yaml:"rows"`
	Columns []string `yaml:"columns"`
}

// Dir is a staging directory. Write methods record each table in the
// manifest kept in memory; Finish persists it.
type Dir struct {
	path  string
	files map[string]FileEntry
}

// ErrNoManifest is returned by Open when the directory was never finished.
var ErrNoManifest = errors.New("staged directory has no manifest")

// Create makes path (and parents) and returns it as an empty staging
// directory. Existing staged files are overwritten as tables are written.
func Create(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create stage dir: %w", err)
	}
	return &Dir{path: path, files: make(map[string]FileEntry)}, nil
}

// Open returns an existing staging directory together with its manifest.
// The manifest's stage version must match this build's.
func Open(path string) (*Dir, *Manifest, error) {
	data, err := os.ReadFile(filepath.Join(path, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.StageVersion != ir.StageVersion {
		return nil, nil, fmt.Errorf("stage version %q not supported (want %q)", m.StageVersion, ir.StageVersion)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	return &Dir{path: path, files: m.Files}, &m, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

func record[T any](d *Dir, t table[T], records []T) error {
	n, err := writeTable(d.path, t, records)
	if err != nil {
		return err
	}
	d.files[t.file] = FileEntry{Rows: n, Columns: t.columns}
	return nil
}

// WriteAccounts stages source accounts.
func (d *Dir) WriteAccounts(accounts []ir.AccountRecord) error {
	return record(d, accountsTable, accounts)
}

// WriteEvents stages source watch events.
func (d *Dir) WriteEvents(events []ir.HistoricalEvent) error {
	return record(d, eventsTable, events)
}

// WriteAddedDates stages source added dates.
func (d *Dir) WriteAddedDates(facts []ir.AddedDateFact) error {
	return record(d, addedTable, facts)
}

// WriteResolved stages resolution outcomes, including unresolved events.
func (d *Dir) WriteResolved(events []ir.ResolvedEvent) error {
	return record(d, resolvedTable, events)
}

// WriteAggregated stages aggregated view state.
func (d *Dir) WriteAggregated(facts []ir.AggregatedFact) error {
	return record(d, aggregatedTable, facts)
}

// Finish writes manifest.yaml describing every table written so far.
func (d *Dir) Finish(runID, source string, createdAt time.Time) (*Manifest, error) {
	m := &Manifest{
		StageVersion: ir.StageVersion,
		ToolVersion:  ir.ToolVersion,
		RunID:        runID,
		CreatedAt:    createdAt.UTC(),
		Source:       source,
		Files:        d.files,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.path, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// Has reports whether the manifest lists file.
func (d *Dir) Has(file string) bool {
	_, ok := d.files[file]
	return ok
}

// Accounts reads staged accounts.
func (d *Dir) Accounts() iter.Seq2[ir.AccountRecord, error] {
	return readTable(d.path, accountsTable)
}

// Events reads staged watch events.
func (d *Dir) Events() iter.Seq2[ir.HistoricalEvent, error] {
	return readTable(d.path, eventsTable)
}

// AddedDates reads staged added dates.
func (d *Dir) AddedDates() iter.Seq2[ir.AddedDateFact, error] {
	return readTable(d.path, addedTable)
}

// Resolved reads staged resolution outcomes.
func (d *Dir) Resolved() iter.Seq2[ir.ResolvedEvent, error] {
	return readTable(d.path, resolvedTable)
}

// Aggregated reads staged aggregated view state.
func (d *Dir) Aggregated() iter.Seq2[ir.AggregatedFact, error] {
	return readTable(d.path, aggregatedTable)
}
