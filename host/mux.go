package host

import (
	"errors"
	"strings"
	"sync"

	"github.com/resynth/resynth"
)

// Mux dispatches artifact paths of the form "scheme:rest" to the Loader
// registered for the scheme and everything else to the fallback Loader.
type Mux struct {
	mutex    sync.RWMutex
	schemes  map[string]resynth.Loader
	fallback resynth.Loader
}

var errNoLoader = errors.New("no loader for artifact")

func NewMux(fallback resynth.Loader) *Mux {
	return &Mux{schemes: map[string]resynth.Loader{}, fallback: fallback}
}

func (m *Mux) Handle(scheme string, loader resynth.Loader) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.schemes[scheme] = loader
}

func (m *Mux) Load(path string) (resynth.Module, error) {
	loader := m.loaderFor(path)
	if loader == nil {
		return nil, &resynth.LoadError{Path: path, Err: errNoLoader}
	}
	return loader.Load(path)
}

// loaderFor ignores single letter schemes so that Windows drive letters are
// treated as file paths.
func (m *Mux) loaderFor(path string) resynth.Loader {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if scheme, _, ok := strings.Cut(path, ":"); ok && len(scheme) > 1 {
		if l, ok := m.schemes[scheme]; ok {
			return l
		}
	}
	return m.fallback
}

// IsFile reports whether path names an artifact on the filesystem rather
// than one resolved by a registered scheme.
func (m *Mux) IsFile(path string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if scheme, _, ok := strings.Cut(path, ":"); ok && len(scheme) > 1 {
		_, registered := m.schemes[scheme]
		return !registered
	}
	return true
}
