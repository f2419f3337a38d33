package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/aurgrab/pkg/errors"
)

var mtime = time.Unix(1600000000, 0)

type entry struct {
	name string
	body string
	mode int64
	typ  byte
	link string
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		typ := e.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Typeflag: typ,
			Linkname: e.link,
			ModTime:  mtime,
			Format:   tar.FormatPAX,
		}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if typ == tar.TypeXGlobalHeader {
			hdr.PAXRecords = map[string]string{"comment": "deadbeef"}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if typ == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func snapshot(t *testing.T) []byte {
	return buildTar(t, []entry{
		{name: "pax_global_header", typ: tar.TypeXGlobalHeader},
		{name: "cower/", mode: 0o755, typ: tar.TypeDir},
		{name: "cower/PKGBUILD", body: "pkgname=cower\n", mode: 0o644},
		{name: "cower/.SRCINFO", body: "pkgbase = cower\n", mode: 0o644},
		{name: "cower/hooks/", mode: 0o755, typ: tar.TypeDir},
		{name: "cower/hooks/run.sh", body: "#!/bin/sh\n", mode: 0o755},
		{name: "cower/current", typ: tar.TypeSymlink, link: "hooks/run.sh"},
	})
}

func TestExtractGzip(t *testing.T) {
	dir := t.TempDir()

	status, err := Extract(bytes.NewReader(gzipped(t, snapshot(t))), dir)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	data, err := os.ReadFile(filepath.Join(dir, "cower", "PKGBUILD"))
	require.NoError(t, err)
	assert.Equal(t, "pkgname=cower\n", string(data))

	assert.NoFileExists(t, filepath.Join(dir, "pax_global_header"))

	link, err := os.Readlink(filepath.Join(dir, "cower", "current"))
	require.NoError(t, err)
	assert.Equal(t, "hooks/run.sh", link)
}

func TestExtractPreservesMetadata(t *testing.T) {
	dir := t.TempDir()

	_, err := Extract(bytes.NewReader(gzipped(t, snapshot(t))), dir)
	require.NoError(t, err)

	script, err := os.Stat(filepath.Join(dir, "cower", "hooks", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), script.Mode().Perm())
	assert.True(t, script.ModTime().Equal(mtime), "file mtime %v", script.ModTime())

	pkgbuild, err := os.Stat(filepath.Join(dir, "cower", "PKGBUILD"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), pkgbuild.Mode().Perm())

	top, err := os.Stat(filepath.Join(dir, "cower"))
	require.NoError(t, err)
	assert.True(t, top.ModTime().Equal(mtime), "dir mtime %v", top.ModTime())
}

func TestExtractPlainTar(t *testing.T) {
	dir := t.TempDir()

	status, err := Extract(bytes.NewReader(snapshot(t)), dir)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.FileExists(t, filepath.Join(dir, "cower", "PKGBUILD"))
}

func TestExtractZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(snapshot(t))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	status, err := Extract(&buf, dir)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.FileExists(t, filepath.Join(dir, "cower", ".SRCINFO"))
}

func TestNewReaderListsEntries(t *testing.T) {
	tr, closer, err := NewReader(bytes.NewReader(gzipped(t, snapshot(t))))
	require.NoError(t, err)
	defer closer.Close()

	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	assert.Contains(t, names, "cower/PKGBUILD")
	assert.Contains(t, names, "cower/hooks/run.sh")
}

func TestExtractCreatesMissingParents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "target")
	data := buildTar(t, []entry{{name: "pkg/PKGBUILD", body: "x", mode: 0o644}})

	_, err := Extract(bytes.NewReader(data), dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "pkg", "PKGBUILD"))
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"parent traversal", "../evil"},
		{"nested traversal", "pkg/../../evil"},
		{"absolute", "/etc/evil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			data := buildTar(t, []entry{{name: tt.entry, body: "x", mode: 0o644}})

			status, err := Extract(bytes.NewReader(data), dir)
			assert.Equal(t, StatusFatal, status)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
		})
	}
}

func TestExtractSymlinkOutsideIsWarning(t *testing.T) {
	dir := t.TempDir()
	data := buildTar(t, []entry{
		{name: "pkg/PKGBUILD", body: "x", mode: 0o644},
		{name: "pkg/escape", typ: tar.TypeSymlink, link: "../../etc/passwd"},
	})

	status, err := Extract(bytes.NewReader(data), dir)
	assert.Equal(t, StatusWarn, status)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, "pkg", "PKGBUILD"))
	_, statErr := os.Lstat(filepath.Join(dir, "pkg", "escape"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractRefusesWritesThroughSymlinks(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "target")
	data := buildTar(t, []entry{
		{name: "a/", mode: 0o755, typ: tar.TypeDir},
		{name: "a/l", typ: tar.TypeSymlink, link: ".."},
		{name: "a/l/l2", typ: tar.TypeSymlink, link: ".."},
		{name: "a/l/l2/pwned", body: "x", mode: 0o644},
	})

	status, err := Extract(bytes.NewReader(data), dir)
	assert.Equal(t, StatusFatal, status)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
	assert.NoFileExists(t, filepath.Join(base, "pwned"))
	assert.NoFileExists(t, filepath.Join(dir, "pwned"))
}

func TestExtractReplacesSymlinkedFile(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))
	dir := filepath.Join(base, "target")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "pkg", "PKGBUILD")))

	data := buildTar(t, []entry{{name: "pkg/PKGBUILD", body: "new", mode: 0o644}})
	_, err := Extract(bytes.NewReader(data), dir)
	require.NoError(t, err)

	got, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "pkg", "PKGBUILD"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestLinkInside(t *testing.T) {
	tests := []struct {
		name, link string
		want       bool
	}{
		{"pkg/current", "hooks/run.sh", true},
		{"pkg/up", "../other/file", true},
		{"a/l", "..", true},
		{"top", "..", false},
		{"pkg/escape", "../../etc/passwd", false},
		{"pkg/abs", "/etc/passwd", false},
		{"pkg/empty", "", false},
		{"a/x", "l/../..", false},
		{"a/b/x", "../l/../y", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, linkInside(tt.name, tt.link), "%s -> %s", tt.name, tt.link)
	}
}

func TestExtractUnder(t *testing.T) {
	t.Run("accepts entries below root", func(t *testing.T) {
		dir := t.TempDir()
		status, err := ExtractUnder(bytes.NewReader(gzipped(t, snapshot(t))), dir, "cower")
		require.NoError(t, err)
		assert.Equal(t, StatusOK, status)
		assert.FileExists(t, filepath.Join(dir, "cower", "PKGBUILD"))
	})

	t.Run("rejects foreign top-level entries", func(t *testing.T) {
		dir := t.TempDir()
		data := buildTar(t, []entry{
			{name: "cower/PKGBUILD", body: "x", mode: 0o644},
			{name: "other/PKGBUILD", body: "evil", mode: 0o644},
		})

		status, err := ExtractUnder(bytes.NewReader(data), dir, "cower")
		assert.Equal(t, StatusFatal, status)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
		assert.NoFileExists(t, filepath.Join(dir, "other", "PKGBUILD"))
	})

	t.Run("rejects shared prefixes", func(t *testing.T) {
		data := buildTar(t, []entry{{name: "cower-git/PKGBUILD", body: "x", mode: 0o644}})
		status, err := ExtractUnder(bytes.NewReader(data), t.TempDir(), "cower")
		assert.Equal(t, StatusFatal, status)
		assert.Error(t, err)
	})
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("<html>not a tarball</html>")},
		{"truncated gzip", []byte{0x1f, 0x8b, 0x08, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := Extract(bytes.NewReader(tt.data), t.TempDir())
			assert.Equal(t, StatusFatal, status)
			assert.Error(t, err)
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fatal", StatusFatal.String())
}
