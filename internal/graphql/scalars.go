package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// jsonScalar passes arbitrary JSON values through untouched. Metadata values
// are a tagged union internally but cross the wire as plain JSON.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize:   func(value any) any { return value },
	ParseValue:  func(value any) any { return value },
	ParseLiteral: func(valueAST ast.Value) any {
		return parseLiteral(valueAST)
	},
})

func parseLiteral(valueAST ast.Value) any {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		return v.Value
	case *ast.FloatValue:
		return v.Value
	case *ast.ObjectValue:
		obj := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			obj[f.Name.Value] = parseLiteral(f.Value)
		}
		return obj
	case *ast.ListValue:
		list := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			list = append(list, parseLiteral(item))
		}
		return list
	default:
		return nil
	}
}
