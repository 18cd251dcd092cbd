package validate

import (
	"strings"
	"testing"
)

func TestDefaultPolicyRejectsHostEscapes(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name    string
		snippet string
		pattern string
	}{
		{name: "import os", snippet: "import os", pattern: "import os"},
		{name: "case insensitive", snippet: "IMPORT OS", pattern: "import os"},
		{name: "subprocess attr", snippet: "subprocess.run('ls')", pattern: "subprocess."},
		{name: "dunder import", snippet: "__import__('os')", pattern: "__import__"},
		{name: "open", snippet: "open('/etc/passwd')", pattern: "open("},
		{name: "eval", snippet: "eval('1+1')", pattern: "eval("},
		{name: "getattr", snippet: "getattr(x, 'foo')", pattern: "getattr("},
		{name: "load", snippet: "load('os', 'environ')", pattern: "load("},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := p.Check(tc.snippet)
			if v.Allowed {
				t.Fatalf("%q should be rejected", tc.snippet)
			}
			if v.Pattern != tc.pattern {
				t.Fatalf("pattern %q, want %q", v.Pattern, tc.pattern)
			}
		})
	}
}

func TestDefaultPolicyAllowsBenignSnippets(t *testing.T) {
	p := DefaultPolicy()
	snippets := []string{
		"2 + 2",
		"a + b",
		"result = sum([1, 2, 3])",
		"math.sqrt(16)",
		"print('hello')",
		"x = [i * i for i in range(10)]",
	}
	for _, s := range snippets {
		if v := p.Check(s); !v.Allowed {
			t.Fatalf("%q rejected by pattern %q", s, v.Pattern)
		}
	}
}

func TestObfuscationPass(t *testing.T) {
	p := DefaultPolicy()
	// Concatenation feeding a dynamic-execution call, split across an
	// intermediate binding. Variants spelled to dodge the plain substrings.
	rejected := []string{
		"x = 'im' + 'port os'\nEvAl (x)",
		"chr(111) + chr(115)",
	}
	for _, s := range rejected {
		if v := p.Check(s); v.Allowed {
			t.Fatalf("%q should be rejected by the obfuscation pass", s)
		}
	}
}

func TestStrictPolicyBansFormatting(t *testing.T) {
	strict := StrictPolicy()
	loose := DefaultPolicy()
	snippets := []string{
		"'{}'.format(1)",
		"'a' + 'b'",
	}
	for _, s := range snippets {
		if v := strict.Check(s); v.Allowed {
			t.Fatalf("strict should reject %q", s)
		}
		if v := loose.Check(s); !v.Allowed {
			t.Fatalf("default should allow %q, rejected by %q", s, v.Pattern)
		}
	}
}

func TestPolicyByName(t *testing.T) {
	if p, ok := PolicyByName(""); !ok || p.Name != "default" {
		t.Fatalf("empty name should resolve to default, got %q ok=%v", p.Name, ok)
	}
	if p, ok := PolicyByName("strict"); !ok || p.Name != "strict" {
		t.Fatalf("strict lookup failed: %q ok=%v", p.Name, ok)
	}
	if _, ok := PolicyByName("paranoid"); ok {
		t.Fatal("unknown policy name should not resolve")
	}
}

func TestCheckSyntaxRejectsUnknownIdentifiers(t *testing.T) {
	allowed := map[string]bool{
		"math": true, "len": true, "range": true, "print": true, "sum": true,
	}
	cases := []struct {
		name    string
		snippet string
		want    string // empty means allowed
	}{
		{name: "allowed call", snippet: "math.sqrt(16)"},
		{name: "bound name", snippet: "x = 1\ny = x + 1"},
		{name: "comprehension var", snippet: "[i * i for i in range(10)]"},
		{name: "def params", snippet: "def f(a, b=2):\n    return a + b\nresult = f(1)"},
		{name: "unknown namespace", snippet: "osmod.system('ls')", want: "identifier osmod"},
		{name: "unknown call", snippet: "spawn(1)", want: "identifier spawn"},
		{name: "reserved attribute", snippet: "x = 1\nx.__class__", want: "attribute __class__"},
		{name: "kwarg name not a use", snippet: "def f(sep=''):\n    return sep\nresult = f(sep='-')"},
		{name: "top level for", snippet: "total = 0\nfor i in range(3):\n    total += i\nresult = total"},
		{name: "top level while", snippet: "i = 0\nwhile i < 3:\n    i += 1"},
		{name: "global reassignment", snippet: "x = 1\nx = 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := CheckSyntax(tc.snippet, allowed)
			if tc.want == "" {
				if !v.Allowed {
					t.Fatalf("should be allowed, rejected by %q", v.Pattern)
				}
				return
			}
			if v.Allowed {
				t.Fatal("should be rejected")
			}
			if !strings.Contains(v.Pattern, tc.want) {
				t.Fatalf("pattern %q, want %q", v.Pattern, tc.want)
			}
		})
	}
}

func TestCheckSyntaxUnparseableSnippetIsDeferred(t *testing.T) {
	// Runtime reports syntax errors with positions; the structural pass
	// only judges snippets it can parse.
	v := CheckSyntax("def broken(", map[string]bool{})
	if !v.Allowed {
		t.Fatalf("unparseable snippet should pass through, rejected by %q", v.Pattern)
	}
}
