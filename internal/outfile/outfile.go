// Package outfile creates the timestamped output files written by each
// pipeline stage (recordings, transcripts, summaries).
//
// File names follow <prefix>_<YYYYMMDD_HHMMSS><ext>. Files are always created
// exclusively: when two files are produced within the same second a numeric
// suffix is appended, so an existing file is never overwritten.
package outfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the time layout used in generated file names.
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the suffix search for same-second file names.
const maxCollisions = 1000

// Dir is an output directory that hands out new, uniquely named files.
// It is safe for concurrent use; uniqueness is enforced by O_EXCL.
type Dir struct {
	path string
	perm fs.FileMode
	now  func() time.Time
}

// Option configures a [Dir].
type Option func(*Dir)

// WithClock overrides the clock used for timestamps. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dir) {
		if now != nil {
			d.now = now
		}
	}
}

// WithFileMode sets the permission bits of created files. Defaults to 0o644.
func WithFileMode(perm fs.FileMode) Option {
	return func(d *Dir) { d.perm = perm }
}

// New returns a Dir rooted at path. The directory is created lazily on the
// first call to [Dir.Create].
func New(path string, opts ...Option) *Dir {
	d := &Dir{path: path, perm: 0o644, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Create makes a new file named <prefix>_<timestamp><ext> inside the
// directory and returns it open for writing. The caller must close it.
func (d *Dir) Create(prefix, ext string) (*os.File, error) {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, fmt.Errorf("outfile: create dir %q: %w", d.path, err)
	}
	stamp := d.now().Format(TimestampLayout)
	base := prefix + "_" + stamp

	for i := 1; i <= maxCollisions; i++ {
		name := base + ext
		if i > 1 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(d.path, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, d.perm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("outfile: create %q: %w", path, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("outfile: no free name for %s%s in %q", base, ext, d.path)
}

// WriteText writes text to a new file and returns its path. A partially
// written file is removed on failure.
func (d *Dir) WriteText(prefix, ext, text string) (string, error) {
	f, err := d.Create(prefix, ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("outfile: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("outfile: close %q: %w", path, err)
	}
	return path, nil
}

// List returns the paths of regular files in the directory whose extension
// matches ext, sorted by name (and therefore by timestamp). A missing
// directory yields an empty list.
func (d *Dir) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outfile: list %q: %w", d.path, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		out = append(out, filepath.Join(d.path, e.Name()))
	}
	return out, nil
}
