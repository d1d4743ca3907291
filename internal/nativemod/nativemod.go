// Package nativemod loads Viua native extension modules: Go plugins built
// with -buildmode=plugin that export a function table under the same
// two-slice convention the original's dlopen/dlsym loader used
// (exports_names/exports_pointers), translated to Go's plugin.Open/Lookup.
package nativemod

import (
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"viua/internal/register"
)

// Export is the Go-side shape of a single native function or method: it
// receives the active call frame plus the static and global register
// sets, and deposits its return value (if any) into frame.Regset register
// 0, exactly like vm.ForeignFunc.
type Export func(frame *register.Frame, static, global *register.Set)

// Module is a loaded native extension: the functions and methods it
// exported, keyed by their bare (unqualified) names.
type Module struct {
	Name      string
	Functions map[string]Export
	Methods   map[string]Export
}

// Loader resolves and caches native modules by name, searching a fixed
// path list in order — the same linear search the original performed over
// VIUAPATH, falling back to the process HOME.
type Loader struct {
	mu         sync.RWMutex
	searchPath []string
	cache      map[string]*Module
}

func NewLoader(searchPath []string) *Loader {
	return &Loader{searchPath: searchPath, cache: make(map[string]*Module)}
}

// DefaultSearchPath builds the search path: the current working directory
// first, then VIUAPATH entries (colon separated, in order), then
// $HOME/.viua/modules, mirroring CPU::eximport's "./" + module + ".so"
// dlopen attempt ahead of support::env::getpaths and
// support::env::viua::getmodpath.
func DefaultSearchPath() []string {
	paths := []string{"."}
	if raw := os.Getenv("VIUAPATH"); raw != "" {
		for _, p := range strings.Split(raw, ":") {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".viua", "modules"))
	}
	return paths
}

// Load opens the named module's .so, reads its export tables, and caches
// the result for subsequent IMPORTs of the same name.
func (l *Loader) Load(name string) (*Module, error) {
	l.mu.RLock()
	if m, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return m, nil
	}
	l.mu.RUnlock()

	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "nativemod: opening %s", path)
	}

	functions, err := readExportTable(p, "ExportedFunctionNames", "ExportedFunctionPointers")
	if err != nil {
		return nil, errors.Wrapf(err, "nativemod: loading functions from %q", name)
	}
	methods, err := readExportTable(p, "ExportedMethodNames", "ExportedMethodPointers")
	if err != nil && !errors.Is(err, errMissingSymbol) {
		return nil, errors.Wrapf(err, "nativemod: loading methods from %q", name)
	}

	mod := &Module{Name: name, Functions: functions, Methods: methods}

	l.mu.Lock()
	l.cache[name] = mod
	l.mu.Unlock()
	return mod, nil
}

var errMissingSymbol = errors.New("nativemod: symbol not present")

func readExportTable(p *plugin.Plugin, namesSymbol, pointersSymbol string) (map[string]Export, error) {
	namesSym, err := p.Lookup(namesSymbol)
	if err != nil {
		return nil, errMissingSymbol
	}
	names, ok := namesSym.(*[]string)
	if !ok {
		return nil, errors.Errorf("%s has the wrong type (want *[]string)", namesSymbol)
	}

	pointersSym, err := p.Lookup(pointersSymbol)
	if err != nil {
		return nil, errors.Wrapf(err, "missing %s alongside %s", pointersSymbol, namesSymbol)
	}
	pointers, ok := pointersSym.(*[]Export)
	if !ok {
		return nil, errors.Errorf("%s has the wrong type (want *[]nativemod.Export)", pointersSymbol)
	}

	if len(*names) != len(*pointers) {
		return nil, errors.Errorf("%s/%s length mismatch (%d names, %d pointers)",
			namesSymbol, pointersSymbol, len(*names), len(*pointers))
	}

	table := make(map[string]Export, len(*names))
	for i, n := range *names {
		table[n] = (*pointers)[i]
	}
	return table, nil
}

func (l *Loader) resolve(name string) (string, error) {
	for _, dir := range l.searchPath {
		if strings.HasPrefix(dir, "~") {
			if home := os.Getenv("HOME"); home != "" {
				dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
			}
		}
		path := filepath.Join(dir, name+".so")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.Errorf("nativemod: module %q not found in search path %v", name, l.searchPath)
}
