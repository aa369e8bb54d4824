package deviceprofile

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Built-in profile names.
const (
	Native   = "native"
	Cast     = "cast"
	Download = "download"
)

// ErrUnknownProfile is returned for a name no loaded profile has.
var ErrUnknownProfile = errors.New("unknown device profile")

//go:embed profiles.yaml
var builtinYAML []byte

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Registry resolves profile names. Profiles from an override file replace
// built-ins of the same name and can be reloaded while running.
type Registry struct {
	mu       sync.RWMutex
	builtin  map[string]Profile
	profiles map[string]Profile
	path     string

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRegistry returns a registry with the built-in profiles and, when path
// is not empty, the profiles from that file layered on top.
func NewRegistry(path string) (*Registry, error) {
	builtin, err := parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in profiles: %w", err)
	}

	r := &Registry{
		builtin:  builtin,
		profiles: builtin,
		path:     path,
	}

	if path != "" {
		if err := r.Reload(); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Get returns a copy of the named profile.
func (r *Registry) Get(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%q: %w", name, ErrUnknownProfile)
	}
	return p, nil
}

// Names returns the loaded profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload re-reads the override file. On error the previous profiles stay active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read device profiles: %w", err)
	}

	overrides, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", r.path, err)
	}

	merged := make(map[string]Profile, len(r.builtin)+len(overrides))
	for name, p := range r.builtin {
		merged[name] = p
	}
	for name, p := range overrides {
		merged[name] = p
	}

	r.mu.Lock()
	r.profiles = merged
	r.mu.Unlock()

	log.Debug().Str("path", r.path).Int("profiles", len(overrides)).Msg("Device profiles loaded")
	return nil
}

// Watch reloads the override file whenever it changes, until ctx is
// cancelled or Close is called.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(r.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.watcher = w
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.eventLoop(ctx, w)

	log.Info().Str("path", r.path).Msg("Watching device profiles")
	return nil
}

func (r *Registry) eventLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer r.wg.Done()

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := r.Reload(); err != nil {
				log.Warn().Err(err).Msg("Keeping previous device profiles")
				continue
			}
			log.Info().Str("path", r.path).Msg("Device profiles reloaded")

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Device profile watcher error")
		}
	}
}

// Close stops watching.
func (r *Registry) Close() error {
	r.mu.Lock()
	w, cancel := r.watcher, r.cancel
	r.watcher, r.cancel = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := w.Close()
	r.wg.Wait()
	return err
}

func parse(data []byte) (map[string]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	out := make(map[string]Profile, len(f.Profiles))
	for i, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		out[p.Name] = p
	}
	return out, nil
}
