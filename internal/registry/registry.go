// Package registry maps friendly package names to canonical package
// identifiers, grouped by category and persisted through a Store.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
)

// Registry is a bidirectional alias table. Aliases are unique across all
// categories, compared case-insensitively. Reads may run concurrently;
// Add and Remove are serialized and persist before returning.
type Registry struct {
	mu    sync.RWMutex
	store Store

	// categories in first-seen order; "" holds uncategorized entries
	categories []string
	byCategory map[string][]models.AliasEntry
	byAlias    map[string]models.AliasEntry

	// set when the store exists but could not be read; mutations would
	// overwrite it
	loadErr error
}

// New creates a registry over store and loads it. On failure the returned
// registry is empty and the error is a ConfigLoadError. A missing store can
// be added to; an unreadable one refuses Add and Remove until a Reload
// succeeds.
func New(store Store) (*Registry, error) {
	r := &Registry{store: store}
	r.reset()
	return r, r.Reload()
}

// Open is New over a FileStore at path
func Open(path string) (*Registry, error) {
	return New(NewFileStore(path))
}

func (r *Registry) reset() {
	r.categories = nil
	r.byCategory = make(map[string][]models.AliasEntry)
	r.byAlias = make(map[string]models.AliasEntry)
}

// Reload discards the in-memory table and reads the store again
func (r *Registry) Reload() error {
	entries, err := r.store.Load()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
	r.loadErr = nil
	if err != nil {
		subject := ""
		if fs, ok := r.store.(*FileStore); ok {
			subject = fs.Path()
		}
		if errors.Is(err, os.ErrNotExist) {
			return models.NewError(models.ErrConfigLoad, subject,
				fmt.Errorf("package mappings file not found: %w", err))
		}
		r.loadErr = models.NewError(models.ErrConfigLoad, subject, err)
		return r.loadErr
	}

	for _, e := range entries {
		key := utils.AliasKey(e.Alias)
		if key == "" || e.PackageID == "" {
			logrus.Warnf("Skipping incomplete mapping %q -> %q", e.Alias, e.PackageID)
			continue
		}
		if existing, ok := r.byAlias[key]; ok {
			logrus.Warnf("Alias %q in %q already defined in %q, keeping %s",
				e.Alias, e.Category, existing.Category, existing.PackageID)
			continue
		}
		r.insert(e)
	}

	logrus.Debugf("Loaded %d package mappings in %d categories", len(r.byAlias), len(r.categories))
	return nil
}

func (r *Registry) insert(e models.AliasEntry) {
	if _, ok := r.byCategory[e.Category]; !ok {
		r.categories = append(r.categories, e.Category)
	}
	r.byCategory[e.Category] = append(r.byCategory[e.Category], e)
	r.byAlias[utils.AliasKey(e.Alias)] = e
}

func (r *Registry) delete(e models.AliasEntry) {
	key := utils.AliasKey(e.Alias)
	delete(r.byAlias, key)

	entries := r.byCategory[e.Category]
	for i := range entries {
		if utils.AliasKey(entries[i].Alias) == key {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}

	if len(entries) > 0 {
		r.byCategory[e.Category] = entries
		return
	}

	// Categories only exist while they hold entries
	delete(r.byCategory, e.Category)
	for i, c := range r.categories {
		if c == e.Category {
			r.categories = append(r.categories[:i:i], r.categories[i+1:]...)
			break
		}
	}
}

// snapshot returns all entries in category order. Caller holds the lock.
func (r *Registry) snapshot() []models.AliasEntry {
	all := make([]models.AliasEntry, 0, len(r.byAlias))
	for _, c := range r.categories {
		all = append(all, r.byCategory[c]...)
	}
	return all
}

// Resolve returns the package ID for name. Matching is exact and
// case-insensitive.
func (r *Registry) Resolve(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byAlias[utils.AliasKey(name)]
	if !ok {
		return "", models.NewError(models.ErrAliasNotFoundType, name, nil)
	}
	return e.PackageID, nil
}

// ReverseLookup returns every alias mapped to packageID, in category order
// then insertion order. The result is empty when there are none.
func (r *Registry) ReverseLookup(packageID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	aliases := []string{}
	for _, c := range r.categories {
		for _, e := range r.byCategory[c] {
			if e.PackageID == packageID {
				aliases = append(aliases, e.Alias)
			}
		}
	}
	return aliases
}

// Add maps alias to packageID under category and persists the registry.
//
// An alias already present in another category is rejected with
// DuplicateAlias. Re-adding within the same category replaces the package
// ID in place. If the store cannot be written the change is rolled back and
// a PersistError is returned.
func (r *Registry) Add(alias, packageID, category string) error {
	alias = strings.TrimSpace(alias)
	packageID = strings.TrimSpace(packageID)
	category = strings.TrimSpace(category)
	if alias == "" {
		return models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("alias must not be empty"))
	}
	if packageID == "" {
		return models.NewError(models.ErrInvalidConfig, alias, fmt.Errorf("package ID must not be empty"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writable(); err != nil {
		return err
	}

	key := utils.AliasKey(alias)
	existing, exists := r.byAlias[key]
	if exists && existing.Category != category {
		return models.NewError(models.ErrDuplicateAliasType, alias,
			fmt.Errorf("already mapped to %s in category %q", existing.PackageID, existing.Category))
	}

	entry := models.AliasEntry{Alias: alias, PackageID: packageID, Category: category}
	previous := r.snapshot()

	if exists {
		entries := r.byCategory[category]
		for i := range entries {
			if utils.AliasKey(entries[i].Alias) == key {
				entries[i] = entry
				break
			}
		}
		r.byAlias[key] = entry
	} else {
		r.insert(entry)
	}

	if err := r.persist(previous); err != nil {
		return err
	}

	logrus.Debugf("Added mapping %s -> %s (%s)", alias, packageID, category)
	return nil
}

// Remove deletes alias and persists the registry. If the store cannot be
// written the alias is restored and a PersistError is returned.
func (r *Registry) Remove(alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writable(); err != nil {
		return err
	}

	e, ok := r.byAlias[utils.AliasKey(alias)]
	if !ok {
		return models.NewError(models.ErrAliasNotFoundType, alias, nil)
	}

	previous := r.snapshot()
	r.delete(e)

	if err := r.persist(previous); err != nil {
		return err
	}

	logrus.Debugf("Removed mapping %s", e.Alias)
	return nil
}

// writable reports whether saving would clobber a store that failed to
// load. Caller holds the lock.
func (r *Registry) writable() error {
	if r.loadErr == nil {
		return nil
	}
	return fmt.Errorf("refusing to modify mappings that failed to load, fix or remove the file first: %w", r.loadErr)
}

// persist writes the current table, restoring previous on failure. Caller
// holds the write lock.
func (r *Registry) persist(previous []models.AliasEntry) error {
	if err := r.store.Save(r.snapshot()); err != nil {
		r.reset()
		for _, e := range previous {
			r.insert(e)
		}
		return models.NewError(models.ErrPersist, "", err)
	}
	return nil
}

// ListCategories returns the categories that currently hold aliases, in
// first-seen order. Uncategorized entries are not listed.
func (r *Registry) ListCategories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]string, 0, len(r.categories))
	for _, c := range r.categories {
		if c != "" {
			categories = append(categories, c)
		}
	}
	return categories
}

// List returns the entries of category, or of every category when category
// is empty, in insertion order within each category.
func (r *Registry) List(category string) []models.AliasEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if category == "" {
		return r.snapshot()
	}
	entries := r.byCategory[category]
	out := make([]models.AliasEntry, len(entries))
	copy(out, entries)
	return out
}

// Len returns the number of aliases
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAlias)
}

// Suggest returns entries whose alias contains name, for display after a
// failed Resolve. It never picks one on the caller's behalf.
func (r *Registry) Suggest(name string) []models.AliasEntry {
	needle := utils.AliasKey(name)
	if needle == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []models.AliasEntry
	for _, e := range r.snapshot() {
		if strings.Contains(utils.AliasKey(e.Alias), needle) {
			matches = append(matches, e)
		}
	}
	return matches
}
