// Package labels loads the class-name list for a classifier. The file is
// newline-delimited, one label per line; line order defines the mapping from
// output index to name.
package labels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Set is an immutable, ordered label list.
type Set struct {
	names []string
}

// FromReader reads one label per line, trimming trailing whitespace.
// Blank lines are kept only when interior, so padded files still line up
// with model output indices.
func FromReader(r io.Reader) (*Set, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, strings.TrimRight(sc.Text(), " \t\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("labels: read: %w", err)
	}
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	return &Set{names: names}, nil
}

// FromSlice wraps an already-ordered list of names.
func FromSlice(names []string) *Set {
	cp := make([]string, len(names))
	copy(cp, names)
	return &Set{names: cp}
}

// Load reads a label file from disk.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("labels: open %s: %w", path, err)
	}
	defer f.Close()
	return FromReader(f)
}

// Fetch downloads the label list once from a static URL.
func Fetch(ctx context.Context, url string) (*Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("labels: request %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("labels: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("labels: fetch %s: status %s", url, resp.Status)
	}
	return FromReader(resp.Body)
}

// Len returns the number of labels.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Name returns the label at index i, or "class <i>" when out of range so
// callers can still report on models with more outputs than labels.
func (s *Set) Name(i int) string {
	if s == nil || i < 0 || i >= len(s.names) {
		return fmt.Sprintf("class %d", i)
	}
	return s.names[i]
}

// Names returns a copy of the ordered list.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}
