// Package validate rejects snippets that reference disallowed constructs
// before any execution side effect. The denylist is a text-pattern boundary
// and is inherently bypassable (indirect accessors, alternate spellings,
// runtime-built strings); CheckSyntax layers an allowlist-based structural
// pass over the parsed snippet as the hardening path.
package validate

import "regexp"

// Verdict is deterministic given the policy and snippet inputs. Pattern holds
// the first triggering pattern when the snippet is rejected.
type Verdict struct {
	Allowed bool
	Pattern string
}

// Policy is a declarative rule set: literal substrings matched
// case-insensitively plus a small regex pass for obfuscation shapes.
type Policy struct {
	Name       string
	Substrings []string
	Regexps    []*regexp.Regexp
}

// obfuscationPatterns catch dynamic-execution calls fed by constructed
// strings: a concatenation directly inside the call, a string literal
// assigned and later routed into such a call, and character-code assembly.
var obfuscationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(eval|exec|compile)\s*\(\s*["'][^"']*["']\s*\+`),
	regexp.MustCompile(`(?is)\w+\s*=\s*["'][^"']*["']\s*[+%].{0,200}\b(eval|exec|compile)\s*\(\s*\w+`),
	regexp.MustCompile(`(?i)\bchr\s*\(\s*\d+\s*\)\s*\+`),
}

// DefaultPolicy is the looser of the two shipped denylists: host-escape
// namespaces, introspection accessors, dynamic code construction, and
// module loading.
func DefaultPolicy() Policy {
	return Policy{
		Name: "default",
		Substrings: []string{
			"import os", "import sys", "import subprocess", "import socket",
			"import urllib", "import requests", "import http",
			"open(", "file(", "exec(", "eval(", "compile(",
			"__import__", "__builtins__", "__globals__", "__locals__",
			"globals()", "getattr(", "setattr(", "delattr(",
			"input(", "raw_input(",
			"exit(", "quit(", "sys.exit",
			"os.", "sys.", "subprocess.", "socket.",
			"urllib.", "requests.", "http.",
			"__file__", "__name__", "__doc__", "__package__",
			"reload(", "importlib", "load(",
			"pickle", "marshal", "shelve",
		},
		Regexps: obfuscationPatterns,
	}
}

// StrictPolicy additionally bans process-adjacent namespaces and ordinary
// string formatting and literal concatenation. It rejects many benign
// snippets; the two tables are a deliberate, unreconciled policy choice and
// the deployment profile picks one.
func StrictPolicy() Policy {
	p := DefaultPolicy()
	p.Name = "strict"
	p.Substrings = append(p.Substrings,
		"shutil", "tempfile", "threading", "multiprocessing", "ctypes",
		"platform", "inspect", "builtins", "warnings", "traceback",
		"signal", "atexit", "resource", "pwd", "grp", "sqlite3",
		".format(", "f\"", "f'", "% (",
	)
	p.Regexps = append(p.Regexps,
		regexp.MustCompile(`["']\s*\+\s*["']`),
	)
	return p
}

// PolicyByName resolves a profile's policy selection.
func PolicyByName(name string) (Policy, bool) {
	switch name {
	case "", "default":
		return DefaultPolicy(), true
	case "strict":
		return StrictPolicy(), true
	default:
		return Policy{}, false
	}
}
