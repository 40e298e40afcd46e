package formula

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type function struct {
	name    string
	minArgs int
	maxArgs int // -1 means variadic
	call    func(n *callNode, env Env) (Value, error)
}

var functions map[string]*function

func init() {
	functions = map[string]*function{
		"SUM":   {name: "SUM", minArgs: 1, maxArgs: -1, call: fnSum},
		"AVG":   {name: "AVG", minArgs: 1, maxArgs: -1, call: fnAvg},
		"MIN":   {name: "MIN", minArgs: 1, maxArgs: -1, call: fnMin},
		"MAX":   {name: "MAX", minArgs: 1, maxArgs: -1, call: fnMax},
		"IF":    {name: "IF", minArgs: 3, maxArgs: 3, call: fnIf},
		"ROUND": {name: "ROUND", minArgs: 1, maxArgs: 2, call: fnRound},
		"ABS":   {name: "ABS", minArgs: 1, maxArgs: 1, call: fnAbs},
		"SQRT":  {name: "SQRT", minArgs: 1, maxArgs: 1, call: fnSqrt},
		"COUNT": {name: "COUNT", minArgs: 1, maxArgs: -1, call: fnCount},
	}
}

func isFunction(name string) bool {
	_, ok := functions[strings.ToUpper(name)]
	return ok
}

// FunctionNames lists the supported function names
func FunctionNames() []string {
	return []string{"SUM", "AVG", "MIN", "MAX", "IF", "ROUND", "ABS", "SQRT", "COUNT"}
}

func numbers(n *callNode, env Env) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(n.args))
	for _, arg := range n.args {
		v, err := arg.eval(env)
		if err != nil {
			return nil, err
		}
		d, ok := v.AsNumber()
		if !ok {
			return nil, Errorf(ReasonNonNumeric, arg.String(), "%s needs numeric arguments, got %s", n.name, v.Kind)
		}
		out = append(out, d)
	}
	return out, nil
}

func fnSum(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	return Number(decimal.Sum(decimal.Zero, nums...)), nil
}

func fnAvg(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	return Number(decimal.Avg(nums[0], nums[1:]...)), nil
}

func fnMin(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	return Number(decimal.Min(nums[0], nums[1:]...)), nil
}

func fnMax(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	return Number(decimal.Max(nums[0], nums[1:]...)), nil
}

// fnIf only evaluates the branch it selects
func fnIf(n *callNode, env Env) (Value, error) {
	cond, err := n.args[0].eval(env)
	if err != nil {
		return Value{}, err
	}
	if cond.Truthy() {
		return n.args[1].eval(env)
	}
	return n.args[2].eval(env)
}

func fnRound(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	places := int32(0)
	if len(nums) == 2 {
		if !nums[1].IsInteger() {
			return Value{}, Errorf(ReasonInvalidValue, n.args[1].String(), "ROUND decimals must be a whole number")
		}
		places = int32(nums[1].IntPart())
	}
	return Number(nums[0].Round(places)), nil
}

func fnAbs(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	return Number(nums[0].Abs()), nil
}

func fnSqrt(n *callNode, env Env) (Value, error) {
	nums, err := numbers(n, env)
	if err != nil {
		return Value{}, err
	}
	if nums[0].IsNegative() {
		return Value{}, Errorf(ReasonDomain, n.String(), "square root of a negative number")
	}
	f, _ := nums[0].Float64()
	return Number(decimal.NewFromFloat(math.Sqrt(f))), nil
}

// fnCount counts arguments that evaluate to a non-empty value
func fnCount(n *callNode, env Env) (Value, error) {
	count := int64(0)
	for _, arg := range n.args {
		v, err := arg.eval(env)
		if evalErr, ok := err.(*EvaluationError); ok && evalErr.Reason == ReasonMissingValue {
			continue
		}
		if err != nil {
			return Value{}, err
		}
		if !v.IsEmpty() {
			count++
		}
	}
	return Int(count), nil
}
