package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-json"
)

// Filter evaluates a boolean expression against a JSON-encoded record. An
// empty expression yields a disabled filter that matches everything.
type Filter struct {
	Enabled            bool
	Expression         string
	CompiledExpression *vm.Program
}

func New(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{Enabled: false}, nil
	}

	compiled, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compiling expression: %w", err)
	}

	return &Filter{
		Enabled:            true,
		Expression:         expression,
		CompiledExpression: compiled,
	}, nil
}

func (f *Filter) Matches(jsonData []byte) (bool, error) {
	if !f.Enabled {
		return true, nil
	}

	exprEnv := make(map[string]interface{})
	err := json.Unmarshal(jsonData, &exprEnv)
	if err != nil {
		return false, fmt.Errorf("unmarshal json: %w", err)
	}

	result, err := expr.Run(f.CompiledExpression, exprEnv)
	if err != nil {
		return false, fmt.Errorf("evaluating expression: %w", err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q is not boolean", f.Expression)
	}

	return matched, nil
}
