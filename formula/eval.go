package formula

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Evaluation bounds. Formulas are tiny; anything hitting these limits is
// malformed input, not a legitimate computation.
const evalMaxSteps = uint64(10_000)

// Eval evaluates the formula against one row's values. env maps each
// identifier of the (resolved) expression to a cell value: float64,
// int64, string, bool, or nil for missing. A nil anywhere in the inputs
// yields a nil result: missing propagates, it is never defaulted.
func (f *Formula) Eval(env map[string]interface{}) (interface{}, error) {
	dict := make(starlark.StringDict, len(env))
	for name, v := range env {
		if v == nil {
			return nil, nil
		}
		sv, err := toStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("formula %q: input %s: %w", f.text, name, err)
		}
		dict[name] = sv
	}

	thread := &starlark.Thread{Name: "formula"}
	thread.SetMaxExecutionSteps(evalMaxSteps)
	val, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, "formula", f.text, dict)
	if err != nil {
		return nil, fmt.Errorf("evaluate formula %q: %w", f.text, err)
	}
	return fromStarlark(val)
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch x := v.(type) {
	case float64:
		return starlark.Float(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromStarlark(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case starlark.Float:
		return float64(x), nil
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("integer result out of range")
		}
		return i, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.NoneType:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type())
	}
}
