package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

const maxResolveDepth = 10

// Resolver evaluates `${<expression>}` strings against a Scope. It performs
// textual substitution recursively and structurally over scalars, sequences,
// and mappings (spec 4.2); it is stateless beyond the scope it is handed per
// call.
type Resolver struct {
	scope workflow.Scope
}

// NewResolver returns a resolver bound to scope.
func NewResolver(scope workflow.Scope) *Resolver {
	return &Resolver{scope: scope}
}

// Resolve walks value recursively: strings are interpolated, slices and maps
// are resolved element-by-element, everything else passes through unchanged.
func (r *Resolver) Resolve(value interface{}) (interface{}, error) {
	return r.resolveDepth(value, 0)
}

func (r *Resolver) resolveDepth(value interface{}, depth int) (interface{}, error) {
	if depth > maxResolveDepth {
		return nil, workflow.New(workflow.KindExecutionUnresolvedReference, "resolution recursion depth exceeded").
			WithContext(map[string]interface{}{"max_depth": maxResolveDepth})
	}

	switch v := value.(type) {
	case string:
		return r.resolveString(v, depth)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			resolved, err := r.resolveDepth(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			resolved, err := r.resolveDepth(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// resolveString implements the "exact expression preserves type, otherwise
// textual substitution" rule (spec 4.2).
func (r *Resolver) resolveString(s string, depth int) (interface{}, error) {
	if expr, ok := wholeExpression(s); ok {
		val, err := r.eval(expr, depth)
		if err != nil {
			return nil, err
		}
		return val, nil
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := matchingBrace(rest, start)
		if end == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		expr := rest[start+2 : end]
		val, err := r.eval(expr, depth)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(val))
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// wholeExpression reports whether s is exactly `${...}` with no surrounding
// text, in which case the raw typed value must be preserved rather than
// coerced to a string.
func wholeExpression(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	if matchingBrace(s, 0) != len(s)-1 {
		return "", false
	}
	return s[2 : len(s)-1], true
}

func matchingBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			if i > 0 && s[i-1] == '$' {
				depth++
			}
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// eval parses and evaluates a single expression body (the content between
// `${` and `}`), applying the default operator before returning.
func (r *Resolver) eval(expr string, depth int) (interface{}, error) {
	p := &exprParser{input: strings.TrimSpace(expr), resolver: r, depth: depth}
	return p.parseDefaultExpr()
}

// exprParser is a small recursive-descent parser for the grammar:
//
//	expr       := orExpr
//	orExpr     := term ( "||" term )*
//	term       := path | call | literal
//	path       := ident ("." ident)+
//	call       := ident "()"
//	literal    := string | number | "true" | "false" | "null"
type exprParser struct {
	input    string
	pos      int
	resolver *Resolver
	depth    int
}

func (p *exprParser) parseDefaultExpr() (interface{}, error) {
	left, leftErr := p.parseTerm()

	p.skipSpace()
	if !p.consumeLiteral("||") {
		if leftErr != nil {
			return nil, leftErr
		}
		return left, nil
	}

	p.skipSpace()
	right, err := p.parseDefaultExpr()
	if err != nil {
		return nil, err
	}

	if leftErr != nil || workflow.IsEmpty(left) {
		return right, nil
	}
	return left, nil
}

func (p *exprParser) parseTerm() (interface{}, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, workflow.New(workflow.KindSchemaParseError, "unexpected end of expression")
	}

	switch c := p.input[p.pos]; {
	case c == '\'' || c == '"':
		return p.parseQuotedString(c)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseIdentOrPathOrCall()
	}
}

func (p *exprParser) parseQuotedString(quote byte) (string, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", workflow.New(workflow.KindSchemaParseError, "unterminated string literal")
	}
	value := p.input[start:p.pos]
	p.pos++
	return value, nil
}

func (p *exprParser) parseNumber() (interface{}, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	raw := p.input[start:p.pos]
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, workflow.New(workflow.KindSchemaParseError, "invalid number literal").WithCause(err)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, workflow.New(workflow.KindSchemaParseError, "invalid number literal").WithCause(err)
	}
	return n, nil
}

func (p *exprParser) parseIdentOrPathOrCall() (interface{}, error) {
	ident := p.parseIdent()
	if ident == "" {
		return nil, workflow.New(workflow.KindSchemaParseError, "expected identifier").
			WithContext(map[string]interface{}{"at": p.input[p.pos:]})
	}

	switch ident {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}

	if p.pos+1 < len(p.input) && p.input[p.pos] == '(' && p.input[p.pos+1] == ')' {
		p.pos += 2
		return callBuiltin(ident, p.resolver.scope)
	}

	path := []string{}
	for p.pos < len(p.input) && p.input[p.pos] == '.' {
		p.pos++
		next := p.parseIdent()
		if next == "" {
			return nil, workflow.New(workflow.KindSchemaParseError, "expected identifier after '.'")
		}
		path = append(path, next)
	}
	if len(path) == 0 {
		return nil, workflow.New(workflow.KindSchemaParseError, "expected a namespaced path, e.g. env.HOME").
			WithContext(map[string]interface{}{"identifier": ident})
	}

	val, err := p.resolver.scope.Resolve(ident, path)
	if err != nil {
		return nil, err
	}

	if depthLeft := p.depth + 1; depthLeft <= maxResolveDepth {
		resolvedRaw, err := p.resolver.resolveDepth(val.Raw(), depthLeft)
		if err == nil {
			return resolvedRaw, nil
		}
	}
	return val.Raw(), nil
}

func (p *exprParser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) consumeLiteral(lit string) bool {
	if strings.HasPrefix(p.input[p.pos:], lit) {
		p.pos += len(lit)
		return true
	}
	return false
}

// callBuiltin evaluates a trailing-`()` builtin function against the scope.
func callBuiltin(name string, scope workflow.Scope) (interface{}, error) {
	switch name {
	case "now":
		return time.Now().UTC().Format(time.RFC3339), nil
	case "uuid":
		return uuid.NewString(), nil
	case "timestamp":
		return time.Now().UnixMilli(), nil
	case "workflowId":
		return scope.Workflow.ID, nil
	case "workflowName":
		return scope.Workflow.Name, nil
	case "runId":
		return scope.Run.ID, nil
	case "attempt":
		return int64(scope.Run.Attempt), nil
	case "triggeredBy":
		return scope.Run.TriggeredBy, nil
	default:
		return nil, workflow.New(workflow.KindSchemaParseError, "unknown builtin function").
			WithContext(map[string]interface{}{"function": name})
	}
}
