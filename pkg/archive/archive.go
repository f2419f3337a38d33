// Package archive unpacks AUR snapshot tarballs.
//
// Snapshots are gzip-compressed tar streams produced by git-archive. They are
// unpacked in place under a target directory, keeping each entry's permission
// bits and modification time so the result looks like a local checkout.
// [NewReader] is also used to read pacman sync databases, which may be gzip
// or zstd compressed.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/aurgrab/pkg/errors"
)

// Status summarises how an extraction went.
type Status int

const (
	// StatusOK means every entry was written with its metadata.
	StatusOK Status = iota
	// StatusWarn means all contents were written but some metadata (mode,
	// mtime, symlinks) could not be applied. The tree is usable.
	StatusWarn
	// StatusFatal means the archive could not be unpacked. Whatever was
	// written before the failure is left on disk.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	default:
		return "fatal"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// NewReader returns a tar reader over r, decompressing gzip or zstd streams
// detected from their magic bytes. Anything else is read as plain tar. The
// returned closer releases the decompressor and must be called when done.
func NewReader(r io.Reader) (*tar.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && len(magic) < len(gzipMagic) {
		return nil, nil, errors.Wrap(errors.ErrCodeMalformed, err, "read archive")
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeMalformed, err, "open gzip stream")
		}
		return tar.NewReader(zr), zr, nil
	case bytes.Equal(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeMalformed, err, "open zstd stream")
		}
		return tar.NewReader(zr), closerFunc(zr.Close), nil
	}
	return tar.NewReader(br), closerFunc(func() {}), nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// Extract unpacks the tar stream r under dir. Compression is detected as in
// [NewReader].
//
// Every entry name is validated before anything is written: absolute names
// and ".." segments fail the extraction with an INVALID_PATH error. Global pax
// headers are skipped. Entries are never written through a symlink: an entry
// whose parent path crosses a symlink on disk is rejected the same way. On
// StatusWarn the returned error joins the metadata failures.
func Extract(r io.Reader, dir string) (Status, error) {
	return ExtractUnder(r, dir, "")
}

// ExtractUnder is like [Extract] but also rejects, with INVALID_PATH, any
// entry outside the top-level directory root. An empty root accepts every
// entry.
func ExtractUnder(r io.Reader, dir, root string) (Status, error) {
	tr, closer, err := NewReader(r)
	if err != nil {
		return StatusFatal, err
	}
	defer closer.Close()

	x := &extractor{dir: dir, root: root}
	if err := x.run(tr); err != nil {
		return StatusFatal, err
	}
	if len(x.warnings) > 0 {
		return StatusWarn, stderrors.Join(x.warnings...)
	}
	return StatusOK, nil
}

type dirMeta struct {
	path  string
	perm  fs.FileMode
	mtime time.Time
}

type extractor struct {
	dir      string
	root     string
	warnings []error
	dirs     []dirMeta
}

func (x *extractor) warn(err error) {
	x.warnings = append(x.warnings, err)
}

func (x *extractor) run(tr *tar.Reader) error {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", x.dir)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeMalformed, err, "read archive")
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "" || name == "." {
			continue
		}
		if err := errors.ValidatePath(name); err != nil {
			return err
		}
		name = strings.TrimSuffix(name, "/")
		if x.root != "" && name != x.root && !strings.HasPrefix(name, x.root+"/") {
			return errors.New(errors.ErrCodeInvalidPath, "%s: entry outside %s/", name, x.root)
		}
		check := path.Dir(name)
		if hdr.Typeflag == tar.TypeDir {
			check = name
		}
		if err := x.noSymlinks(check); err != nil {
			return err
		}
		target := filepath.Join(x.dir, filepath.FromSlash(name))

		if err := x.entry(tr, hdr, name, target); err != nil {
			return err
		}
	}

	// Directory metadata is applied last, deepest first: writing children
	// bumps the mtime, and a read-only mode would block them.
	for i := len(x.dirs) - 1; i >= 0; i-- {
		d := x.dirs[i]
		x.chmod(d.path, d.perm)
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			x.warn(err)
		}
	}
	return nil
}

func (x *extractor) entry(tr *tar.Reader, hdr *tar.Header, name, target string) error {
	mode := hdr.FileInfo().Mode()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", target)
		}
		x.dirs = append(x.dirs, dirMeta{target, mode.Perm(), hdr.ModTime})

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", filepath.Dir(target))
		}
		if err := removeSymlink(target); err != nil {
			return err
		}
		if err := writeFile(target, tr, mode.Perm()); err != nil {
			return err
		}
		x.chmod(target, mode.Perm())
		if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
			x.warn(err)
		}

	case tar.TypeSymlink:
		if !linkInside(name, hdr.Linkname) {
			x.warn(errors.New(errors.ErrCodeInvalidPath, "%s: symlink points outside the archive", name))
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", filepath.Dir(target))
		}
		_ = os.Remove(target)
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			x.warn(err)
		}

	default:
		x.warn(errors.New(errors.ErrCodeUnsupported, "%s: unsupported entry type %q", name, hdr.Typeflag))
	}
	return nil
}

func (x *extractor) chmod(target string, perm fs.FileMode) {
	if err := os.Chmod(target, perm); err != nil {
		x.warn(err)
	}
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", target)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeFilesystem, err, "write %s", target)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "write %s", target)
	}
	return nil
}

// noSymlinks fails when any existing component of the relative path rel is a
// symlink. Components that do not exist yet are created as real directories.
func (x *extractor) noSymlinks(rel string) error {
	if rel == "." {
		return nil
	}
	cur := x.dir
	for _, part := range strings.Split(rel, "/") {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", cur)
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return errors.New(errors.ErrCodeInvalidPath, "%s: path crosses symlink %s", rel, part)
		}
	}
	return nil
}

// removeSymlink unlinks target if it is a symlink, so the file written in its
// place does not follow it.
func removeSymlink(target string) error {
	fi, err := os.Lstat(target)
	if err != nil || fi.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "remove %s", target)
	}
	return nil
}

// linkInside reports whether a relative symlink at name resolves inside the
// extraction root. ".." is only allowed as leading components: once the link
// descends into a name, which may itself be a symlink, it may not climb again.
func linkInside(name, link string) bool {
	if link == "" || path.IsAbs(link) {
		return false
	}
	depth := strings.Count(name, "/")
	descended := false
	for _, part := range strings.Split(link, "/") {
		switch part {
		case "", ".":
		case "..":
			if descended || depth == 0 {
				return false
			}
			depth--
		default:
			descended = true
		}
	}
	return true
}
