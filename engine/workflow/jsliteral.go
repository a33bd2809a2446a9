package workflow

import (
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"
)

// parseJSObjectLiteral parses the input as a JavaScript object literal
// expression. Only object, array, literal and identifier nodes are accepted;
// nothing is evaluated.
func parseJSObjectLiteral(src string) (any, error) {
	program, err := parser.ParseFile(nil, "workflow.js", "("+src+")", 0)
	if err != nil {
		return nil, fmt.Errorf("workflow: js literal parse: %w", err)
	}
	if len(program.Body) != 1 {
		return nil, fmt.Errorf("workflow: js literal: expected a single expression")
	}
	stmt, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, fmt.Errorf("workflow: js literal: not an expression")
	}
	return literalValue(stmt.Expression)
}

func literalValue(expr ast.Expression) (any, error) {
	switch e := expr.(type) {
	case *ast.ObjectLiteral:
		return objectValue(e)
	case *ast.ArrayLiteral:
		out := make([]any, 0, len(e.Value))
		for _, el := range e.Value {
			if el == nil {
				out = append(out, nil)
				continue
			}
			v, err := literalValue(el)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.StringLiteral:
		return e.Value.String(), nil
	case *ast.NumberLiteral:
		switch n := e.Value.(type) {
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		default:
			return nil, fmt.Errorf("workflow: js literal: unsupported number %v", e.Value)
		}
	case *ast.BooleanLiteral:
		return e.Value, nil
	case *ast.NullLiteral:
		return nil, nil
	case *ast.Identifier:
		if e.Name.String() == "undefined" {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: js literal: bare identifier %q", e.Name.String())
	case *ast.UnaryExpression:
		return unaryValue(e)
	default:
		return nil, fmt.Errorf("workflow: js literal: unsupported node %T", expr)
	}
}

func objectValue(obj *ast.ObjectLiteral) (map[string]any, error) {
	out := make(map[string]any, len(obj.Value))
	for _, prop := range obj.Value {
		keyed, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			return nil, fmt.Errorf("workflow: js literal: unsupported property %T", prop)
		}
		key, err := propertyKey(keyed.Key)
		if err != nil {
			return nil, err
		}
		value, err := literalValue(keyed.Value)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func propertyKey(expr ast.Expression) (string, error) {
	switch k := expr.(type) {
	case *ast.StringLiteral:
		return k.Value.String(), nil
	case *ast.Identifier:
		return k.Name.String(), nil
	case *ast.NumberLiteral:
		return fmt.Sprintf("%v", k.Value), nil
	default:
		return "", fmt.Errorf("workflow: js literal: unsupported key %T", expr)
	}
}

func unaryValue(e *ast.UnaryExpression) (any, error) {
	operand, err := literalValue(e.Operand)
	if err != nil {
		return nil, err
	}
	num, ok := operand.(float64)
	if !ok {
		return nil, fmt.Errorf("workflow: js literal: unary operator on non-number")
	}
	switch e.Operator {
	case token.MINUS:
		return -num, nil
	case token.PLUS:
		return num, nil
	default:
		return nil, fmt.Errorf("workflow: js literal: unsupported operator %s", e.Operator)
	}
}
