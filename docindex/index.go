// Package docindex reads, writes and validates searchData fragments of a
// generated API documentation search index.
//
// A fragment is a javascript array literal of entries sorted by key:
//
//	var searchData=
//	[
//	  ['key',['Label',['../page.html#anchor',1,'Context']]]
//	];
//
// Labels and contexts are kept exactly as found, html entities included.
package docindex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Link points to one definition or occurrence of a symbol.
type Link struct {
	URL     string
	Flag    int
	Context string
}

// Entry is one row of a fragment. A single link is the definition of the
// symbol, several links list overloads or occurrences.
type Entry struct {
	Key   string
	Label string
	Links []Link
}

// Overloaded tells whether the entry refers to more than one place.
func (e *Entry) Overloaded() bool {
	return len(e.Links) > 1
}

func (e *Entry) equal(o *Entry) bool {
	if e.Key != o.Key || e.Label != o.Label || len(e.Links) != len(o.Links) {
		return false
	}
	for i := range e.Links {
		if e.Links[i] != o.Links[i] {
			return false
		}
	}
	return true
}

// Index is a parsed fragment, entries are in file order.
type Index struct {
	Entries []Entry
}

// Equal compares two indexes entry by entry.
func (idx *Index) Equal(o *Index) bool {
	if len(idx.Entries) != len(o.Entries) {
		return false
	}
	for i := range idx.Entries {
		if !idx.Entries[i].equal(&o.Entries[i]) {
			return false
		}
	}
	return true
}

// Write serializes the index in canonical layout, one entry per line.
func (idx *Index) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("var searchData=\n[\n")
	for i := range idx.Entries {
		e := &idx.Entries[i]
		bw.WriteString("  [")
		bw.WriteString(quote(e.Key))
		bw.WriteString(",[")
		bw.WriteString(quote(e.Label))
		for _, l := range e.Links {
			bw.WriteString(",[")
			bw.WriteString(quote(l.URL))
			bw.WriteByte(',')
			bw.WriteString(strconv.Itoa(l.Flag))
			bw.WriteByte(',')
			bw.WriteString(quote(l.Context))
			bw.WriteByte(']')
		}
		bw.WriteString("]]")
		if i < len(idx.Entries)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("];\n")
	return bw.Flush()
}

// String returns the canonical serialization.
func (idx *Index) String() string {
	var sb strings.Builder
	idx.Write(&sb)
	return sb.String()
}

// Lookup returns entries whose key starts with the key of the given label
// prefix. Keys must be sorted.
func (idx *Index) Lookup(prefix string) []Entry {
	key := SearchKey(prefix)
	start := sort.Search(len(idx.Entries), func(i int) bool {
		return idx.Entries[i].Key >= key
	})
	var out []Entry
	for _, e := range idx.Entries[start:] {
		if !strings.HasPrefix(e.Key, key) {
			break
		}
		out = append(out, e)
	}
	return out
}

var entities = strings.NewReplacer("&amp;", "&", "&quot;", "\"", "&lt;", "<", "&gt;", ">")

// SearchKey returns the key a label is indexed under: the label is lowered
// and every byte outside [a-z0-9] becomes '_' followed by two hex digits.
// Html entities of the label stand for the character they encode.
func SearchKey(label string) string {
	const hex = "0123456789abcdef"

	s := entities.Replace(label)
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('_')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

// quote renders s as a single quoted javascript string.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteByte(c)
		default:
			if c < 0x20 {
				fmt.Fprintf(&sb, `\x%02x`, c)
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
