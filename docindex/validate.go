package docindex

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

// ErrInvalid is wrapped by every violation Validate reports.
var ErrInvalid = errors.New("invalid search index")

var urlPattern = regexp.MustCompile(`^(\.\./)?[A-Za-z0-9_\-.]+\.html(#[A-Za-z0-9_\-.:]+)?$`)

// Validate checks every entry of idx and returns all violations combined,
// use multierr.Errors to split them.
func Validate(idx *Index) error {
	var (
		errs  error
		folds = make(map[string]string, len(idx.Entries))
	)
	violation := func(i int, key, format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("entry %d %q: %s: %w", i, key, fmt.Sprintf(format, args...), ErrInvalid))
	}

	for i := range idx.Entries {
		e := &idx.Entries[i]
		if want := SearchKey(e.Label); e.Key != want {
			violation(i, e.Key, "key does not match label %q, want %q", e.Label, want)
		}
		if i > 0 && e.Key < idx.Entries[i-1].Key {
			violation(i, e.Key, "out of order after %q", idx.Entries[i-1].Key)
		}
		for _, l := range e.Links {
			if !urlPattern.MatchString(l.URL) {
				violation(i, e.Key, "bad url %q", l.URL)
			}
		}
		lower := strings.ToLower(e.Key)
		if other, ok := folds[lower]; ok && other != e.Key {
			violation(i, e.Key, "differs only in case from %q", other)
		} else if !ok {
			folds[lower] = e.Key
		}
	}

	if err := roundTrip(idx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// roundTrip makes sure the canonical serialization reads back the same.
func roundTrip(idx *Index) error {
	var buf bytes.Buffer
	if err := idx.Write(&buf); err != nil {
		return err
	}
	canonical := buf.String()
	again, err := Parse(&buf)
	if err != nil {
		return fmt.Errorf("serialized index does not parse: %v: %w", err, ErrInvalid)
	}
	if !again.Equal(idx) {
		return fmt.Errorf("serialized index reads back differently: %w", ErrInvalid)
	}
	if again.String() != canonical {
		return fmt.Errorf("serialization is not stable: %w", ErrInvalid)
	}
	return nil
}

// Canonical tells whether data is byte for byte the serialization of the
// index parsed from it.
func Canonical(data []byte) (bool, error) {
	idx, err := Parse(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return idx.String() == string(data), nil
}
