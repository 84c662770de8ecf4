package todo

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over to-do items. The expression sees
// the variables priority, status, category, title, source_document (all
// strings), tags (list of strings), blocked and has_deadline (bools), for
// example:
//
//	priority == "CRITICAL" && !blocked
//	"signatur" in tags || category == "Signatures Required"
type Filter struct {
	expr string
	prg  cel.Program
}

func filterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("priority", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("source_document", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("blocked", cel.BoolType),
		cel.Variable("has_deadline", cel.BoolType),
	)
}

// CompileFilter parses and type-checks expr. The expression must evaluate
// to a bool.
func CompileFilter(expr string) (*Filter, error) {
	env, err := filterEnv()
	if err != nil {
		return nil, fmt.Errorf("filter env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match evaluates the predicate against it.
func (f *Filter) Match(it *Item) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{
		"priority":        it.Priority.String(),
		"status":          string(it.Status),
		"category":        it.Category,
		"title":           it.Title,
		"source_document": it.SourceDocument,
		"tags":            it.Tags,
		"blocked":         len(it.BlockedBy) > 0,
		"has_deadline":    it.Deadline != nil,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.expr, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.expr, out.Value())
	}
	return v, nil
}

// Apply returns the items for which the predicate holds.
func (f *Filter) Apply(items []*Item) ([]*Item, error) {
	var out []*Item
	for _, it := range items {
		ok, err := f.Match(it)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Filter compiles expr and applies it to every categorized item, keeping
// category order.
func (gen *Generator) Filter(expr string) ([]*Item, error) {
	f, err := CompileFilter(expr)
	if err != nil {
		return nil, err
	}
	var all []*Item
	for _, c := range gen.Generate() {
		all = append(all, c.Items...)
	}
	return f.Apply(all)
}
