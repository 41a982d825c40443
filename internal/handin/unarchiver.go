package handin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/inclusion"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// Record describes the workspace produced for one part and group.
type Record struct {
	PartID  uint
	GroupID uint
	Dir     string
	Handin  File
	// Missing lists expected but absent paths; empty means the extraction was filtered cleanly.
	Missing []string
}

// Clean reports whether every inclusion rule was satisfied.
func (r Record) Clean() bool {
	return len(r.Missing) == 0
}

// Diagnostic joins the missing-path lines for display.
func (r Record) Diagnostic() string {
	return strings.Join(r.Missing, "\n")
}

// HandinLocator resolves the archive attributed to a group.
type HandinLocator interface {
	Latest(event models.GradableEvent, group models.Group) (File, error)
}

// Workspaces creates the per-part, per-group directories.
type Workspaces interface {
	Dir(part models.DistributablePart, group models.Group) string
	Prepare(part models.DistributablePart, group models.Group) (string, error)
}

// DiagnosticSink is told which expected paths were missing. It hears about the
// extraction that found them, then again with cached set on every memoised hit.
type DiagnosticSink interface {
	MissingFiles(ctx context.Context, part models.DistributablePart, group models.Group, missing []string, cached bool)
}

// LogDiagnosticSink reports missing files through the logger.
type LogDiagnosticSink struct {
	logger zerolog.Logger
}

// NewLogDiagnosticSink constructs a logging sink.
func NewLogDiagnosticSink(logger zerolog.Logger) *LogDiagnosticSink {
	return &LogDiagnosticSink{logger: logger.With().Str("component", "handin_diagnostics").Logger()}
}

// MissingFiles logs a fresh diagnostic at warn level and a cached one at info level.
func (s *LogDiagnosticSink) MissingFiles(_ context.Context, part models.DistributablePart, group models.Group, missing []string, cached bool) {
	event := s.logger.Warn()
	if cached {
		event = s.logger.Info()
	}
	event.
		Bool("cached", cached).
		Uint("part_id", part.ID).
		Str("part", part.Name).
		Str("group", group.Name).
		Strs("missing", missing).
		Msg("handin is missing expected files; extracted the entire archive instead")
}

type cacheKey struct {
	partID  uint
	groupID uint
}

type cacheEntry struct {
	mu             sync.Mutex
	record         *Record
	readmes        []string
	readmesScanned bool
}

// Unarchiver extracts handins into workspaces. Results are memoised per part and
// group and never invalidated for the lifetime of the Unarchiver, even if the
// archive or the workspace changes on disk afterwards.
type Unarchiver struct {
	accessor   archive.Accessor
	locator    HandinLocator
	workspaces Workspaces
	sink       DiagnosticSink
	logger     zerolog.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewUnarchiver constructs an unarchiver. A nil sink logs diagnostics.
func NewUnarchiver(accessor archive.Accessor, locator HandinLocator, workspaces Workspaces, sink DiagnosticSink, logger zerolog.Logger) *Unarchiver {
	if sink == nil {
		sink = NewLogDiagnosticSink(logger)
	}
	return &Unarchiver{
		accessor:   accessor,
		locator:    locator,
		workspaces: workspaces,
		sink:       sink,
		logger:     logger.With().Str("component", "handin_unarchiver").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-grader/internal/handin"),
		entries:    make(map[cacheKey]*cacheEntry),
	}
}

func (u *Unarchiver) entry(part models.DistributablePart, group models.Group) *cacheEntry {
	key := cacheKey{partID: part.ID, groupID: group.ID}

	u.mu.Lock()
	defer u.mu.Unlock()

	e, ok := u.entries[key]
	if !ok {
		e = &cacheEntry{}
		u.entries[key] = e
	}
	return e
}

// Unarchive returns the group's workspace for the part, extracting the most recent
// handin the first time it is requested. Concurrent calls for the same part and
// group extract once. Failures are not cached.
func (u *Unarchiver) Unarchive(ctx context.Context, part models.DistributablePart, group models.Group) (Record, error) {
	e := u.entry(part, group)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record != nil {
		if !e.record.Clean() {
			u.sink.MissingFiles(ctx, part, group, append([]string(nil), e.record.Missing...), true)
		}
		return copyRecord(*e.record), nil
	}

	ctx, span := u.tracer.Start(ctx, "handin.unarchive", trace.WithAttributes(
		attribute.Int64("handin.part_id", int64(part.ID)),
		attribute.Int64("handin.group_id", int64(group.ID)),
	))
	defer span.End()

	record, err := u.extract(part, group)
	if err != nil {
		observability.UnarchiveTotal().WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "unarchive failed")
		return Record{}, fmt.Errorf("unarchive part %q for group %q: %w", part.Name, group.Name, err)
	}

	e.record = &record

	if record.Clean() {
		observability.UnarchiveTotal().WithLabelValues("filtered").Inc()
	} else {
		observability.UnarchiveTotal().WithLabelValues("fallback").Inc()
		span.SetAttributes(attribute.Int("handin.missing", len(record.Missing)))
		u.sink.MissingFiles(ctx, part, group, append([]string(nil), record.Missing...), false)
	}

	u.logger.Info().
		Uint("part_id", part.ID).
		Uint("group_id", group.ID).
		Str("dir", record.Dir).
		Bool("clean", record.Clean()).
		Msg("handin unarchived")

	return copyRecord(record), nil
}

func (u *Unarchiver) extract(part models.DistributablePart, group models.Group) (Record, error) {
	handin, err := u.locator.Latest(part.GradableEvent, group)
	if err != nil {
		return Record{}, err
	}

	spec, err := part.Filter()
	if err != nil {
		return Record{}, err
	}

	dir, err := u.workspaces.Prepare(part, group)
	if err != nil {
		return Record{}, err
	}

	missing, err := ExtractFiltered(u.accessor, handin.Path, dir, spec)
	if err != nil {
		return Record{}, err
	}

	return Record{
		PartID:  part.ID,
		GroupID: group.ID,
		Dir:     dir,
		Handin:  handin,
		Missing: missing,
	}, nil
}

// ExtractFiltered extracts archivePath into dir. When every rule of spec is
// satisfied only the matching entries and readmes are written; otherwise the
// whole archive is extracted and the unsatisfied rules are returned.
func ExtractFiltered(accessor archive.Accessor, archivePath, dir string, spec inclusion.Spec) ([]string, error) {
	entries, err := accessor.ListEntries(archivePath)
	if err != nil {
		return nil, err
	}

	allPresent, missing := inclusion.ArePresent(spec, entries)

	accept := archive.AcceptAll()
	if allPresent {
		accept = archive.Or(inclusion.BuildFilter(spec), inclusion.ReadmeFilter())
	}

	if err := accessor.Extract(archivePath, dir, accept); err != nil {
		return nil, err
	}
	return missing, nil
}

// Readmes returns the readme files in the group's workspace, unarchiving first if
// needed. The scan happens once and is cached separately from the workspace.
func (u *Unarchiver) Readmes(ctx context.Context, part models.DistributablePart, group models.Group) ([]string, error) {
	record, err := u.Unarchive(ctx, part, group)
	if err != nil {
		return nil, err
	}

	e := u.entry(part, group)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.readmesScanned {
		return append([]string(nil), e.readmes...), nil
	}

	readmes, err := scanReadmes(record.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan readmes for group %q: %w", group.Name, err)
	}

	e.readmes = readmes
	e.readmesScanned = true
	return append([]string(nil), readmes...), nil
}

func scanReadmes(root string) ([]string, error) {
	var readmes []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && inclusion.IsReadme(d.Name()) {
			readmes = append(readmes, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(readmes)
	return readmes, nil
}

func copyRecord(r Record) Record {
	r.Missing = append([]string(nil), r.Missing...)
	return r
}
