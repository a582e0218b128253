// Package archive writes completed contests to YAML files in the archive
// directory and renders them for display.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/wizard"
)

// Extension of archived contest files.
const Extension = ".yml"

// Record is the archived form of a completed contest. The access token is
// not archived.
type Record struct {
	ContestID          string         `yaml:"contest_id"`
	Name               string         `yaml:"name"`
	IssuedAt           time.Time      `yaml:"issued_at"`
	CompletedAt        time.Time      `yaml:"completed_at"`
	AssessmentOverview map[string]any `yaml:"assessment_overview"`
	TestConfiguration  map[string]any `yaml:"test_configuration"`
	SectionTitles      []string       `yaml:"section_titles"`
	Changes            string         `yaml:"changes,omitempty"`
}

// NewRecord builds the record for a completion.
func NewRecord(c wizard.Completion) *Record {
	return &Record{
		ContestID:          c.Handle.ContestID,
		Name:               c.Final.Text(draft.SectionOverview, draft.FieldName),
		IssuedAt:           c.Handle.IssuedAt,
		CompletedAt:        c.CompletedAt,
		AssessmentOverview: c.Final.Overview(),
		TestConfiguration:  c.Final.Configuration(),
		SectionTitles:      c.Final.SectionTitles(),
		Changes:            Diff(c.Submitted, c.Final),
	}
}

// Archive writes records under a directory.
type Archive struct {
	dir string
}

// New returns an archive rooted at dir. The directory is created on first write.
func New(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// FileName returns the file name used for a contest.
func FileName(name, contestID string) string {
	s := slug.Make(name)
	if s == "" {
		s = "contest"
	}
	id := contestID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return s + Extension
	}
	return s + "-" + id + Extension
}

// PathFor returns where the completion will be written.
func (a *Archive) PathFor(c wizard.Completion) string {
	return filepath.Join(a.dir, FileName(c.Final.Text(draft.SectionOverview, draft.FieldName), c.Handle.ContestID))
}

// Finalize writes the completed contest.
func (a *Archive) Finalize(ctx context.Context, c wizard.Completion) error {
	_, err := a.Save(c)
	return err
}

// Save writes the completed contest and returns the file path.
func (a *Archive) Save(c wizard.Completion) (string, error) {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	data, err := yaml.Marshal(NewRecord(c))
	if err != nil {
		return "", fmt.Errorf("failed to marshal contest: %w", err)
	}

	path := a.PathFor(c)
	logger.Debug("archive: writing %s", path)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write contest file: %w", err)
	}
	return path, nil
}

// Load reads an archived contest.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contest file: %w", err)
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse contest file %s: %w", path, err)
	}
	if r.ContestID == "" {
		return nil, fmt.Errorf("%s is not a contest file", path)
	}
	return &r, nil
}

// List returns the archived contest files, newest first.
func (a *Archive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	type file struct {
		path string
		mod  time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(a.dir, e.Name()), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// Diff returns a unified diff between the submitted and final drafts, or ""
// when they are equal.
func Diff(submitted, final draft.Draft) string {
	before, err := yaml.Marshal(submitted.Map())
	if err != nil {
		return ""
	}
	after, err := yaml.Marshal(final.Map())
	if err != nil {
		return ""
	}
	if string(before) == string(after) {
		return ""
	}
	return udiff.Unified("submitted", "final", string(before), string(after))
}

// Markdown renders a summary of the record.
func (r *Record) Markdown() string {
	var b strings.Builder

	name := r.Name
	if name == "" {
		name = "Untitled contest"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	if desc := text(r.AssessmentOverview[draft.FieldDescription]); desc != "" {
		fmt.Fprintf(&b, "%s\n\n", desc)
	}

	b.WriteString("| | |\n|---|---|\n")
	row(&b, "Contest ID", r.ContestID)
	row(&b, "Registration opens", text(r.AssessmentOverview[draft.FieldRegistrationStart]))
	row(&b, "Registration closes", text(r.AssessmentOverview[draft.FieldRegistrationEnd]))
	row(&b, "Max registrations", text(r.AssessmentOverview[draft.FieldMaxRegistrations]))
	if !r.CompletedAt.IsZero() {
		row(&b, "Completed", r.CompletedAt.Format(time.RFC3339))
	}
	b.WriteString("\n")

	b.WriteString("## Configuration\n\n")
	fields, _ := draft.Fields(draft.SectionConfiguration)
	for _, f := range fields {
		v := text(r.TestConfiguration[f.Name])
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", f.Label, v)
	}
	b.WriteString("\n")

	if len(r.SectionTitles) > 0 {
		b.WriteString("## Sections\n\n")
		for i, title := range r.SectionTitles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		}
		b.WriteString("\n")
	}

	if guidelines := text(r.AssessmentOverview[draft.FieldGuidelines]); guidelines != "" {
		fmt.Fprintf(&b, "## Guidelines\n\n%s\n\n", guidelines)
	}

	if r.Changes != "" {
		fmt.Fprintf(&b, "## Changes since submission\n\n```diff\n%s```\n", r.Changes)
	}

	return b.String()
}

func row(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "| %s | %s |\n", label, strings.ReplaceAll(value, "|", "\\|"))
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "yes"
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}
