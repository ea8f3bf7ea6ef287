package docindex

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/natural"

	"tempus/archive"
)

// Fragment is one parsed file of an index.
type Fragment struct {
	Name  string
	Raw   []byte
	Index *Index
}

var signature = []byte("var " + arrayName)

// IsFragment tells whether data looks like a search index fragment. Other
// scripts live next to fragments in generated documentation.
func IsFragment(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\ufeff"), signature)
}

// Load reads fragments from a single file, a directory tree or a zip
// archive of documentation. Files which are not fragments are ignored when
// reading a tree or an archive, fragments are sorted by name.
func Load(path string) ([]Fragment, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var frags []Fragment
	add := func(name string, r io.Reader, strict bool) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", name, err)
		}
		if !strict && !IsFragment(data) {
			return nil
		}
		idx, err := Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s:%w", name, err)
		}
		frags = append(frags, Fragment{Name: name, Raw: data, Index: idx})
		return nil
	}

	if fi.IsDir() {
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || filepath.Ext(p) != ".js" {
				return err
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			return add(p, f, false)
		})
	} else if zipped, zerr := archive.IsZip(path); zerr != nil {
		err = zerr
	} else if zipped {
		err = archive.Walk(path, func(name string) bool { return filepath.Ext(name) == ".js" },
			func(_, name string, r io.Reader) error { return add(name, r, false) })
	} else {
		var f *os.File
		if f, err = os.Open(path); err == nil {
			err = add(path, f, true)
			f.Close()
		}
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(frags, func(i, j int) bool { return natural.Less(frags[i].Name, frags[j].Name) })
	return frags, nil
}
