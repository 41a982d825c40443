package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

type codec int

const (
	codecZip codec = iota + 1
	codecTar
	codecTarGzip
)

// member is a single archive record surfaced by a codec walk.
type member struct {
	raw     string
	mode    os.FileMode
	isDir   bool
	symlink bool
	open    func() (io.ReadCloser, error)
}

// FormatAccessor reads zip, jar, tar and gzip-compressed tar archives. The codec
// is chosen by sniffing the file content rather than trusting the file name.
type FormatAccessor struct {
	logger zerolog.Logger
}

// NewFormatAccessor constructs an accessor.
func NewFormatAccessor(logger zerolog.Logger) *FormatAccessor {
	return &FormatAccessor{logger: logger.With().Str("component", "archive_accessor").Logger()}
}

// ListEntries returns every entry of the archive, including directories implied by file paths.
func (a *FormatAccessor) ListEntries(archivePath string) ([]Entry, error) {
	var entries []Entry
	err := a.walk(archivePath, func(m member) error {
		if m.symlink {
			return nil
		}
		normalized := NormalizePath(m.raw)
		if normalized == "" {
			return nil
		}
		entries = append(entries, Entry{Path: normalized, IsDir: m.isDir})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return withImpliedDirectories(entries), nil
}

// Extract writes every accepted entry below destDir, creating intermediate directories.
func (a *FormatAccessor) Extract(archivePath, destDir string, accept Predicate) error {
	if accept == nil {
		accept = AcceptAll()
	}

	root, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	return a.walk(archivePath, func(m member) error {
		if err := checkSafe(m.raw); err != nil {
			return err
		}
		if m.symlink {
			a.logger.Warn().Str("archive", archivePath).Str("entry", m.raw).Msg("skipping symbolic link")
			return nil
		}

		normalized := NormalizePath(m.raw)
		if normalized == "" {
			return nil
		}

		entry := Entry{Path: normalized, IsDir: m.isDir}
		if !accept(entry) {
			return nil
		}

		target := filepath.Join(root, filepath.FromSlash(normalized))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafeEntry, m.raw)
		}

		if m.isDir {
			return os.MkdirAll(target, 0o755)
		}

		return writeMember(target, m)
	})
}

func writeMember(target string, m member) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	src, err := m.open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrArchiveFormat, m.raw, err)
	}
	defer src.Close()

	perm := m.mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: read %s: %v", ErrArchiveFormat, m.raw, err)
	}

	return dst.Close()
}

func checkSafe(raw string) error {
	name := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(raw) {
		return fmt.Errorf("%w: %s", ErrUnsafeEntry, raw)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%w: %s", ErrUnsafeEntry, raw)
	}
	return nil
}

func (a *FormatAccessor) walk(archivePath string, visit func(member) error) error {
	kind, err := detect(archivePath)
	if err != nil {
		return err
	}

	switch kind {
	case codecZip:
		return walkZip(archivePath, visit)
	case codecTar:
		return walkTar(archivePath, false, visit)
	case codecTarGzip:
		return walkTar(archivePath, true, visit)
	default:
		return fmt.Errorf("%w: %s", ErrArchiveFormat, archivePath)
	}
}

func detect(archivePath string) (codec, error) {
	mime, err := mimetype.DetectFile(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: detect %s: %v", ErrArchiveFormat, archivePath, err)
	}

	for m := mime; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return codecZip, nil
		case m.Is("application/x-tar"):
			return codecTar, nil
		case m.Is("application/gzip"):
			return codecTarGzip, nil
		}
	}

	return 0, fmt.Errorf("%w: %s has type %s", ErrArchiveFormat, archivePath, mime.String())
}

func walkZip(archivePath string, visit func(member) error) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && reader != nil) {
		return fmt.Errorf("%w: %s: %v", ErrArchiveFormat, archivePath, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		file := file
		mode := file.Mode()
		m := member{
			raw:     file.Name,
			mode:    mode,
			isDir:   file.FileInfo().IsDir(),
			symlink: mode&os.ModeSymlink != 0,
			open: func() (io.ReadCloser, error) {
				return file.Open()
			},
		}
		if err := visit(m); err != nil {
			return err
		}
	}

	return nil
}

func walkTar(archivePath string, gzipped bool, visit func(member) error) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var stream io.Reader = file
	if gzipped {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArchiveFormat, archivePath, err)
		}
		defer gz.Close()
		stream = gz
	}

	reader := tar.NewReader(stream)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArchiveFormat, archivePath, err)
		}

		switch header.Typeflag {
		case tar.TypeDir, tar.TypeReg, tar.TypeSymlink, tar.TypeLink:
		default:
			continue
		}

		m := member{
			raw:     header.Name,
			mode:    header.FileInfo().Mode(),
			isDir:   header.Typeflag == tar.TypeDir,
			symlink: header.Typeflag == tar.TypeSymlink || header.Typeflag == tar.TypeLink,
			open: func() (io.ReadCloser, error) {
				return io.NopCloser(reader), nil
			},
		}
		if err := visit(m); err != nil {
			return err
		}
	}
}
