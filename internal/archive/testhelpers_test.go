package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testFile struct {
	Name    string
	Content string
}

func writeZip(t *testing.T, dir, name string, files []testFile) string {
	t.Helper()

	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	require.NoError(t, err)
	defer out.Close()

	writer := zip.NewWriter(out)
	for _, f := range files {
		w, err := writer.Create(f.Name)
		require.NoError(t, err)
		if !strings.HasSuffix(f.Name, "/") {
			_, err = w.Write([]byte(f.Content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())

	return target
}

func writeTarGz(t *testing.T, dir, name string, files []testFile) string {
	t.Helper()

	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	require.NoError(t, err)
	defer out.Close()

	gz := gzip.NewWriter(out)
	writer := tar.NewWriter(gz)
	for _, f := range files {
		header := &tar.Header{Name: f.Name, Mode: 0o644, Size: int64(len(f.Content)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(f.Name, "/") {
			header = &tar.Header{Name: f.Name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, writer.WriteHeader(header))
		if header.Typeflag == tar.TypeReg {
			_, err := writer.Write([]byte(f.Content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())
	require.NoError(t, gz.Close())

	return target
}
