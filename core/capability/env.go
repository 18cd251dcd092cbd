// Package capability builds the fixed evaluation namespace a snippet may
// touch: a constrained set of primitive operations plus the permitted library
// namespaces. The set is constructed once per execution, is immutable
// thereafter, and is shared by the validator (as an allowlist of names) and
// the executor (as the predeclared environment).
package capability

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// SyntaxOptions is the dialect snippets are parsed and executed with:
// top-level control flow, while loops, recursion and global reassignment.
// The default dialect rejects loops outside functions, which would make
// ordinary statement snippets unrunnable; unbounded iteration is contained
// by the deadline and the step budget, not by the grammar.
func SyntaxOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// Modules returns the permitted namespaces, freshly constructed for one
// execution: math, time and json from the interpreter's standard library,
// plus the random, re and statistics modules built in this package. Integer
// arithmetic is arbitrary-precision natively; no extra namespace is needed
// for it.
func Modules() starlark.StringDict {
	return starlark.StringDict{
		"math":       math.Module,
		"time":       time.Module,
		"json":       json.Module,
		"random":     RandomModule(),
		"re":         RegexModule(),
		"statistics": StatisticsModule(),
	}
}

// Names lists the permitted namespaces, sorted, for self-documenting errors.
func Names() []string {
	mods := Modules()
	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllowedNames is the full identifier allowlist for the structural validator:
// the interpreter's universe of primitives plus the permitted namespaces.
func AllowedNames() map[string]bool {
	names := make(map[string]bool, len(starlark.Universe)+8)
	for name := range starlark.Universe {
		names[name] = true
	}
	for name := range Modules() {
		names[name] = true
	}
	return names
}

// BuildEnv constructs the predeclared environment for one execution: the
// permitted namespaces, the caller's context variables, and the opaque
// context payload under the conventional name "data".
func BuildEnv(vars map[string]any, data any) (starlark.StringDict, error) {
	env := Modules()
	for name, value := range vars {
		v, err := ToStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("context variable %q: %w", name, err)
		}
		env[name] = v
	}
	if data != nil {
		v, err := ToStarlark(data)
		if err != nil {
			return nil, fmt.Errorf("context data: %w", err)
		}
		env["data"] = v
	}
	return env, nil
}

// Loader backs the interpreter's load() hook. Permitted namespaces expose
// their members; anything else fails with an error enumerating the allowed
// set. The denylist already rejects load() under the default policy, so this
// is the second layer of the joint enforcement.
func Loader(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	if v, ok := Modules()[module]; ok {
		if mod, ok := v.(*starlarkstruct.Module); ok {
			return mod.Members, nil
		}
	}
	return nil, fmt.Errorf("module %q is not available; allowed modules: %s",
		module, strings.Join(Names(), ", "))
}
