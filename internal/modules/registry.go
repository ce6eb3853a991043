package modules

import (
	"sort"
	"sync"

	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// DefaultAliases maps display names and shorthands to catalog categories.
var DefaultAliases = map[string]string{
	"utility":      "utilities",
	"utils":        "utilities",
	"social-media": "social",
	"ai-tools":     "ai",
	"data-stores":  "data",
}

// Registry is the thread-safe catalog of operations, keyed by canonical path.
type Registry struct {
	mu         sync.RWMutex
	ops        map[string]Descriptor
	categories map[string]int
	aliases    map[string]string
}

// NewRegistry creates an empty Registry with DefaultAliases installed.
func NewRegistry() *Registry {
	r := &Registry{
		ops:        make(map[string]Descriptor),
		categories: make(map[string]int),
		aliases:    make(map[string]string, len(DefaultAliases)),
	}
	for alias, target := range DefaultAliases {
		r.aliases[alias] = target
	}
	return r
}

// Register adds an operation. Its category is stored normalized.
func (r *Registry) Register(d Descriptor) error {
	if d.Invoke == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "module %q has no callable", d.Path)
	}
	category, _, module, function, err := splitPath(d.Path)
	if err != nil || category == "" {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"module path %q must be category.module.function", d.Path)
	}
	if d.Style == StylePositional && len(d.ParameterNames) == 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"positional module %q declares no parameters", d.Path)
	}

	p := Path{Category: NormalizeCategory(category), Module: module, Function: function}
	d.Path = p.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[d.Path]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "module %q already registered", d.Path)
	}
	r.ops[d.Path] = d
	r.categories[p.Category]++
	return nil
}

// MustRegister registers every descriptor and panics on the first failure.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Alias maps an additional category name onto an existing one.
func (r *Registry) Alias(alias, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[NormalizeCategory(alias)] = NormalizeCategory(category)
}

// Resolve parses raw and maps its category through the alias table.
// It fails with INVALID_MODULE_PATH when the shape is wrong or the category is
// unknown, and with MODULE_NOT_FOUND when the category exists but the
// module or function does not.
func (r *Registry) Resolve(raw string) (Descriptor, Path, error) {
	category, twoWord, module, function, err := splitPath(raw)
	if err != nil {
		return Descriptor{}, Path{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var cat string
	var ok bool
	if twoWord != "" {
		cat, ok = r.knownCategory(twoWord)
	} else {
		cat, ok = r.knownCategory(category)
	}
	if !ok {
		return Descriptor{}, Path{}, schema.NewErrorf(schema.ErrCodeInvalidModulePath,
			"unknown category in module path %q", raw).
			WithDetails(map[string]any{"module": raw})
	}

	p := Path{Category: cat, Module: module, Function: function}
	d, found := r.ops[p.String()]
	if !found {
		return Descriptor{}, p, schema.NewErrorf(schema.ErrCodeModuleNotFound,
			"module %q not found", p.String()).
			WithDetails(map[string]any{"module": raw})
	}
	return d, p, nil
}

// knownCategory must be called with r.mu held.
func (r *Registry) knownCategory(raw string) (string, bool) {
	cat := NormalizeCategory(raw)
	if target, ok := r.aliases[cat]; ok {
		cat = target
	}
	return cat, r.categories[cat] > 0
}

// Has reports whether raw resolves to a registered operation.
func (r *Registry) Has(raw string) bool {
	_, _, err := r.Resolve(raw)
	return err == nil
}

// List returns all registered operations sorted by path.
func (r *Registry) List() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ModuleInfo, 0, len(r.ops))
	for path, d := range r.ops {
		infos = append(infos, ModuleInfo{
			Path:        path,
			Description: d.Description,
			Style:       d.Style.String(),
			Parameters:  append([]string(nil), d.ParameterNames...),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Path < infos[j].Path
	})
	return infos
}

// Count returns the number of registered operations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
