package tenant

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// AllowList is the set of tenants permitted to send events.
// An empty list allows any well-formed tenant.
type AllowList struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewAllowList returns a list holding the normalized, non-empty ids.
func NewAllowList(ids ...string) *AllowList {
	a := &AllowList{ids: make(map[string]struct{}, len(ids))}
	a.Add(ids...)
	return a
}

// Add inserts ids after normalization. Empty ids are ignored.
func (a *AllowList) Add(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if id = Normalize(id); id != "" {
			a.ids[id] = struct{}{}
		}
	}
}

// Remove deletes id and reports whether it was present.
func (a *AllowList) Remove(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	id = Normalize(id)
	if _, ok := a.ids[id]; !ok {
		return false
	}
	delete(a.ids, id)
	return true
}

// Contains reports whether id is on the list.
func (a *AllowList) Contains(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.ids[Normalize(id)]
	return ok
}

// Len returns the number of tenants.
func (a *AllowList) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ids)
}

// List returns the tenants sorted.
func (a *AllowList) List() []string {
	a.mu.RLock()
	out := make([]string, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	a.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ParseList splits a comma-separated tenant list.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id := Normalize(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ReadList reads one tenant per line, skipping blanks and # comments.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := Normalize(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tenants: %w", err)
	}
	return out, nil
}

// LoadFile reads a tenants file in ReadList format.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tenants file: %w", err)
	}
	defer f.Close()
	return ReadList(f)
}
