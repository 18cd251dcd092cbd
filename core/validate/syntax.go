package validate

import (
	"strings"

	"go.starlark.net/syntax"

	"crucible/core/capability"
)

// CheckSyntax is the allowlist-based structural pass: it parses the snippet
// and rejects any identifier that is neither bound within the snippet nor
// present in the allowed set, any attribute whose name is reserved
// (underscore-prefixed), and any load statement. Parsing uses the same
// dialect the executor runs, so the pass never rejects a snippet the
// executor would accept. A snippet that fails to parse is allowed through;
// the executor reports the syntax error with full position information.
func CheckSyntax(snippet string, allowed map[string]bool) Verdict {
	f, err := capability.SyntaxOptions().Parse("snippet.star", snippet, 0)
	if err != nil {
		return Verdict{Allowed: true}
	}

	c := &checker{
		allowed: allowed,
		bound:   map[string]bool{"result": true},
	}
	c.collectBindings(f)
	c.stmts(f.Stmts)
	if c.failed {
		return Verdict{Allowed: false, Pattern: c.pattern}
	}
	return Verdict{Allowed: true}
}

type checker struct {
	allowed map[string]bool
	bound   map[string]bool
	failed  bool
	pattern string
}

func (c *checker) reject(pattern string) {
	if c.failed {
		return
	}
	c.failed = true
	c.pattern = pattern
}

// collectBindings records every name the snippet itself binds, in one pass
// over the whole tree. Scope is approximated as flat: a name bound anywhere
// is acceptable everywhere, which errs on the permissive side and leaves
// use-before-bind to the runtime.
func (c *checker) collectBindings(f *syntax.File) {
	syntax.Walk(f, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.DefStmt:
			c.bound[n.Name.Name] = true
			c.bindParams(n.Params)
		case *syntax.LambdaExpr:
			c.bindParams(n.Params)
		case *syntax.AssignStmt:
			if n.Op == syntax.EQ {
				c.bindTargets(n.LHS)
			}
		case *syntax.ForStmt:
			c.bindTargets(n.Vars)
		case *syntax.ForClause:
			c.bindTargets(n.Vars)
		}
		return true
	})
}

func (c *checker) bindParams(params []syntax.Expr) {
	for _, p := range params {
		switch p := p.(type) {
		case *syntax.Ident:
			c.bound[p.Name] = true
		case *syntax.BinaryExpr: // default value: name=expr
			if id, ok := p.X.(*syntax.Ident); ok {
				c.bound[id.Name] = true
			}
		case *syntax.UnaryExpr: // *args / **kwargs
			if id, ok := p.X.(*syntax.Ident); ok {
				c.bound[id.Name] = true
			}
		}
	}
}

func (c *checker) bindTargets(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Ident:
		c.bound[e.Name] = true
	case *syntax.TupleExpr:
		for _, elem := range e.List {
			c.bindTargets(elem)
		}
	case *syntax.ListExpr:
		for _, elem := range e.List {
			c.bindTargets(elem)
		}
	case *syntax.ParenExpr:
		c.bindTargets(e.X)
	}
}

func (c *checker) stmts(stmts []syntax.Stmt) {
	for _, s := range stmts {
		if c.failed {
			return
		}
		c.stmt(s)
	}
}

func (c *checker) stmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.AssignStmt:
		// Plain assignment to a bare name is a pure bind; anything else on
		// the left (index, attribute, augmented ops) also reads.
		if _, isIdent := s.LHS.(*syntax.Ident); !(isIdent && s.Op == syntax.EQ) {
			c.expr(s.LHS)
		}
		c.expr(s.RHS)
	case *syntax.BranchStmt:
		// pass / break / continue
	case *syntax.DefStmt:
		c.exprs(s.Params)
		c.stmts(s.Body)
	case *syntax.ExprStmt:
		c.expr(s.X)
	case *syntax.ForStmt:
		c.expr(s.X)
		c.stmts(s.Body)
	case *syntax.WhileStmt:
		c.expr(s.Cond)
		c.stmts(s.Body)
	case *syntax.IfStmt:
		c.expr(s.Cond)
		c.stmts(s.True)
		c.stmts(s.False)
	case *syntax.LoadStmt:
		c.reject("load statement")
	case *syntax.ReturnStmt:
		if s.Result != nil {
			c.expr(s.Result)
		}
	}
}

func (c *checker) exprs(list []syntax.Expr) {
	for _, e := range list {
		if c.failed {
			return
		}
		c.expr(e)
	}
}

func (c *checker) expr(e syntax.Expr) {
	if e == nil || c.failed {
		return
	}
	switch e := e.(type) {
	case *syntax.Ident:
		if !c.bound[e.Name] && !c.allowed[e.Name] {
			c.reject("identifier " + e.Name)
		}
	case *syntax.Literal:
		// ok
	case *syntax.ParenExpr:
		c.expr(e.X)
	case *syntax.UnaryExpr:
		c.expr(e.X)
	case *syntax.BinaryExpr:
		c.expr(e.X)
		c.expr(e.Y)
	case *syntax.DotExpr:
		if strings.HasPrefix(e.Name.Name, "_") {
			c.reject("attribute " + e.Name.Name)
			return
		}
		c.expr(e.X)
	case *syntax.CallExpr:
		c.expr(e.Fn)
		for _, arg := range e.Args {
			// keyword arguments: name=value binds nothing and reads only value
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				if _, isName := kw.X.(*syntax.Ident); isName {
					c.expr(kw.Y)
					continue
				}
			}
			c.expr(arg)
		}
	case *syntax.IndexExpr:
		c.expr(e.X)
		c.expr(e.Y)
	case *syntax.SliceExpr:
		c.expr(e.X)
		c.expr(e.Lo)
		c.expr(e.Hi)
		c.expr(e.Step)
	case *syntax.ListExpr:
		c.exprs(e.List)
	case *syntax.TupleExpr:
		c.exprs(e.List)
	case *syntax.DictExpr:
		c.exprs(e.List)
	case *syntax.DictEntry:
		c.expr(e.Key)
		c.expr(e.Value)
	case *syntax.CondExpr:
		c.expr(e.Cond)
		c.expr(e.True)
		c.expr(e.False)
	case *syntax.LambdaExpr:
		c.exprs(e.Params)
		c.expr(e.Body)
	case *syntax.Comprehension:
		c.expr(e.Body)
		for _, clause := range e.Clauses {
			switch clause := clause.(type) {
			case *syntax.ForClause:
				c.expr(clause.X)
			case *syntax.IfClause:
				c.expr(clause.Cond)
			}
		}
	}
}
