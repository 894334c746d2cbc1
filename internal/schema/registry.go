package schema

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/xtremefabrix/formrelay/model"
)

type snapshot struct {
	forms    map[string]model.FormSchema
	order    []string
	checksum string
}

// Registry is a read-optimized, thread-safe set of form schemas keyed by ID.
// Reads are lock-free; Replace swaps the whole set atomically.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry holding the given forms.
func NewRegistry(forms []model.FormSchema) *Registry {
	r := &Registry{}
	r.Replace(forms)
	return r
}

// Replace atomically swaps the registry contents. A later form with the same
// ID wins.
func (r *Registry) Replace(forms []model.FormSchema) {
	s := &snapshot{forms: make(map[string]model.FormSchema, len(forms))}

	for _, f := range forms {
		if f.Checksum == "" {
			f.Checksum = fingerprint(f)
		}
		s.forms[f.ID] = f
	}

	parts := make([]string, 0, len(s.forms))
	for id, f := range s.forms {
		s.order = append(s.order, id)
		parts = append(parts, f.Checksum)
	}
	sort.Strings(s.order)
	sort.Strings(parts)
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(parts, ":"))))

	r.snap.Store(s)
}

// Get returns the form with the given ID.
func (r *Registry) Get(formID string) (model.FormSchema, bool) {
	f, ok := r.snap.Load().forms[formID]
	return f, ok
}

// All returns every form ordered by ID.
func (r *Registry) All() []model.FormSchema {
	s := r.snap.Load()
	out := make([]model.FormSchema, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.forms[id])
	}
	return out
}

// Len returns the number of registered forms.
func (r *Registry) Len() int {
	return len(r.snap.Load().forms)
}

// Checksum returns the combined checksum of all registered forms.
func (r *Registry) Checksum() string {
	return r.snap.Load().checksum
}

// fingerprint gives built-in forms a stable checksum.
func fingerprint(f model.FormSchema) string {
	data, err := json.Marshal(f)
	if err != nil {
		return f.ID
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
