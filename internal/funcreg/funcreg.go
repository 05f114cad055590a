// Package funcreg is the function-registry collaborator of §6: UDF/UDAF
// overload lookup and the implicit-conversion table the expression
// compiler and join-key unification consult. The registry never executes a
// function — it only resolves a call to a concrete, typed signature the
// compiler binds into the operator tree; actually invoking the method is
// the execution runtime's job (out of scope, §1).
package funcreg

import (
	"fmt"
	"strings"

	"github.com/dshills/hiveql-compiler/internal/exprtype"
)

// UDFMethod is one resolved overload of a scalar function or conversion.
type UDFMethod struct {
	Name       string
	ParamTypes []*exprtype.TypeInfo
	ReturnType *exprtype.TypeInfo
}

// UDAFEvaluator is one resolved overload of an aggregate function. It
// carries the three type positions the group-by planner needs to wire
// parameter and intermediate conversions: the argument types `iterate`
// accepts, the partial-aggregation state type `terminatePartial`/`merge`
// exchange, and the final type `terminate` produces.
type UDAFEvaluator struct {
	Name        string
	ParamTypes  []*exprtype.TypeInfo
	PartialType *exprtype.TypeInfo
	ReturnType  *exprtype.TypeInfo

	// SupportsDistinct marks evaluators (like count, sum) that can be
	// invoked with a DISTINCT argument set; per §9 Open Questions only
	// single-column DISTINCT is specified.
	SupportsDistinct bool
}

// Registry is the collaborator contract of §6.
type Registry interface {
	GetUDF(name string, argTypes []*exprtype.TypeInfo) (*UDFMethod, error)
	GetUDAF(name string, argTypes []*exprtype.TypeInfo) (*UDAFEvaluator, error)
	GetUDAFEvaluator(name string, argTypes []*exprtype.TypeInfo) (*UDAFEvaluator, error)
	// HasAggregate reports whether name is registered as an aggregate,
	// regardless of argument types. The phase-1 analyzer uses this to
	// find aggregation subtrees in a select list before any argument has
	// been type-checked.
	HasAggregate(name string) bool
	GetCommonClass(a, b *exprtype.TypeInfo) (*exprtype.TypeInfo, bool)
	ImplicitConvertible(from, to *exprtype.TypeInfo) bool
	// GetUDFMethod resolves the conversion UDF from fromType to the
	// primitive named by targetTypeName (e.g. "bigint", "double",
	// "string"), used to wrap a non-conforming argument or join key.
	GetUDFMethod(targetTypeName string, fromType *exprtype.TypeInfo) (*UDFMethod, error)
}

// udfKey groups overloads by lower-cased function name.
type udfKey string

func key(name string) udfKey { return udfKey(strings.ToLower(name)) }

// BuiltinRegistry is the default Registry: a fixed table of scalar
// functions, conversion UDFs and aggregates, in the style of a
// dependency-free, statically-initialized lookup table. Grounded on the
// teacher's planner/expression.go visitor's typed-node shape, generalized
// into overload resolution instead of execution.
type BuiltinRegistry struct {
	udfs  map[udfKey][]*UDFMethod
	udafs map[udfKey][]*UDAFEvaluator
}

// NewBuiltinRegistry builds the registry with the functions and aggregates
// this compiler needs to exercise every group-by/join/expression path in
// the spec.
func NewBuiltinRegistry() *BuiltinRegistry {
	r := &BuiltinRegistry{
		udfs:  make(map[udfKey][]*UDFMethod),
		udafs: make(map[udfKey][]*UDAFEvaluator),
	}
	r.registerScalarFunctions()
	r.registerConversions()
	r.registerAggregates()
	return r
}

func (r *BuiltinRegistry) addUDF(name string, m *UDFMethod) {
	r.udfs[key(name)] = append(r.udfs[key(name)], m)
}

func (r *BuiltinRegistry) addUDAF(name string, e *UDAFEvaluator) {
	r.udafs[key(name)] = append(r.udafs[key(name)], e)
}

func (r *BuiltinRegistry) registerScalarFunctions() {
	numerics := []*exprtype.TypeInfo{exprtype.Integer, exprtype.BigInt, exprtype.Double}

	for _, op := range []string{"+", "-", "*", "/", "%"} {
		for _, numeric := range numerics {
			r.addUDF(op, &UDFMethod{Name: op, ParamTypes: []*exprtype.TypeInfo{numeric, numeric}, ReturnType: numeric})
		}
	}
	for _, op := range []string{"=", "<>", "<", "<=", ">", ">="} {
		for _, numeric := range numerics {
			r.addUDF(op, &UDFMethod{Name: op, ParamTypes: []*exprtype.TypeInfo{numeric, numeric}, ReturnType: exprtype.Boolean})
		}
		r.addUDF(op, &UDFMethod{Name: op, ParamTypes: []*exprtype.TypeInfo{exprtype.Text, exprtype.Text}, ReturnType: exprtype.Boolean})
	}
	r.addUDF("and", &UDFMethod{Name: "and", ParamTypes: []*exprtype.TypeInfo{exprtype.Boolean, exprtype.Boolean}, ReturnType: exprtype.Boolean})
	r.addUDF("or", &UDFMethod{Name: "or", ParamTypes: []*exprtype.TypeInfo{exprtype.Boolean, exprtype.Boolean}, ReturnType: exprtype.Boolean})
	r.addUDF("not", &UDFMethod{Name: "not", ParamTypes: []*exprtype.TypeInfo{exprtype.Boolean}, ReturnType: exprtype.Boolean})

	r.addUDF("upper", &UDFMethod{Name: "upper", ParamTypes: []*exprtype.TypeInfo{exprtype.Text}, ReturnType: exprtype.Text})
	r.addUDF("lower", &UDFMethod{Name: "lower", ParamTypes: []*exprtype.TypeInfo{exprtype.Text}, ReturnType: exprtype.Text})
	r.addUDF("concat", &UDFMethod{Name: "concat", ParamTypes: []*exprtype.TypeInfo{exprtype.Text, exprtype.Text}, ReturnType: exprtype.Text})
	r.addUDF("length", &UDFMethod{Name: "length", ParamTypes: []*exprtype.TypeInfo{exprtype.Text}, ReturnType: exprtype.Integer})
}

func (r *BuiltinRegistry) registerConversions() {
	numerics := []*exprtype.TypeInfo{exprtype.SmallInt, exprtype.Integer, exprtype.BigInt, exprtype.Float, exprtype.Double}
	for _, from := range append(numerics, exprtype.Text) {
		for _, target := range numerics {
			if exprtype.Equal(from, target) {
				continue
			}
			name := "to_" + exprtype.CanonicalName(target)
			r.addUDF(name, &UDFMethod{Name: name, ParamTypes: []*exprtype.TypeInfo{from}, ReturnType: target})
		}
	}
	for _, from := range numerics {
		r.addUDF("to_text", &UDFMethod{Name: "to_text", ParamTypes: []*exprtype.TypeInfo{from}, ReturnType: exprtype.Text})
	}
}

func (r *BuiltinRegistry) registerAggregates() {
	r.addUDAF("count", &UDAFEvaluator{Name: "count", ParamTypes: []*exprtype.TypeInfo{exprtype.Void}, PartialType: exprtype.BigInt, ReturnType: exprtype.BigInt, SupportsDistinct: true})
	for _, numeric := range []*exprtype.TypeInfo{exprtype.Integer, exprtype.BigInt, exprtype.Double} {
		r.addUDAF("sum", &UDAFEvaluator{Name: "sum", ParamTypes: []*exprtype.TypeInfo{numeric}, PartialType: numeric, ReturnType: numeric, SupportsDistinct: true})
		r.addUDAF("min", &UDAFEvaluator{Name: "min", ParamTypes: []*exprtype.TypeInfo{numeric}, PartialType: numeric, ReturnType: numeric})
		r.addUDAF("max", &UDAFEvaluator{Name: "max", ParamTypes: []*exprtype.TypeInfo{numeric}, PartialType: numeric, ReturnType: numeric})
		r.addUDAF("avg", &UDAFEvaluator{Name: "avg", ParamTypes: []*exprtype.TypeInfo{numeric}, PartialType: exprtype.OfStruct(
			exprtype.StructField{Name: "sum", Type: exprtype.Double},
			exprtype.StructField{Name: "count", Type: exprtype.BigInt},
		), ReturnType: exprtype.Double})
	}
}

// matchExact returns the method whose ParamTypes exactly equal argTypes.
func matchExact(argTypes []*exprtype.TypeInfo, candidates interface{ paramsAt(int) []*exprtype.TypeInfo; count() int }) int {
	for i := 0; i < candidates.count(); i++ {
		p := candidates.paramsAt(i)
		if len(p) != len(argTypes) {
			continue
		}
		ok := true
		for j := range p {
			if !exprtype.Equal(p[j], argTypes[j]) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

type udfList []*UDFMethod

func (l udfList) paramsAt(i int) []*exprtype.TypeInfo { return l[i].ParamTypes }
func (l udfList) count() int                          { return len(l) }

type udafList []*UDAFEvaluator

func (l udafList) paramsAt(i int) []*exprtype.TypeInfo { return l[i].ParamTypes }
func (l udafList) count() int                          { return len(l) }

// GetUDF implements Registry.
func (r *BuiltinRegistry) GetUDF(name string, argTypes []*exprtype.TypeInfo) (*UDFMethod, error) {
	candidates := udfList(r.udfs[key(name)])
	if i := matchExact(argTypes, candidates); i >= 0 {
		return candidates[i], nil
	}
	// Widen each argument to its common class with the overload's
	// declared parameter type and retry, mirroring implicit numeric
	// widening (§4.4).
	for _, c := range candidates {
		if len(c.ParamTypes) != len(argTypes) {
			continue
		}
		ok := true
		for j := range c.ParamTypes {
			if common, widens := exprtype.CommonClass(c.ParamTypes[j], argTypes[j]); !widens || !exprtype.Equal(common, c.ParamTypes[j]) {
				ok = false
				break
			}
		}
		if ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no matching signature for function %s", name)
}

// GetUDAF implements Registry.
func (r *BuiltinRegistry) GetUDAF(name string, argTypes []*exprtype.TypeInfo) (*UDAFEvaluator, error) {
	return r.GetUDAFEvaluator(name, argTypes)
}

// GetUDAFEvaluator implements Registry.
func (r *BuiltinRegistry) GetUDAFEvaluator(name string, argTypes []*exprtype.TypeInfo) (*UDAFEvaluator, error) {
	candidates := udafList(r.udafs[key(name)])
	if i := matchExact(argTypes, candidates); i >= 0 {
		return candidates[i], nil
	}
	for _, c := range candidates {
		if len(c.ParamTypes) != len(argTypes) {
			continue
		}
		ok := true
		for j := range c.ParamTypes {
			if exprtype.Equal(c.ParamTypes[j], exprtype.Void) {
				continue
			}
			if common, widens := exprtype.CommonClass(c.ParamTypes[j], argTypes[j]); !widens || !exprtype.Equal(common, c.ParamTypes[j]) {
				ok = false
				break
			}
		}
		if ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no matching aggregate signature for %s", name)
}

// HasAggregate implements Registry.
func (r *BuiltinRegistry) HasAggregate(name string) bool {
	_, ok := r.udafs[key(name)]
	return ok
}

// GetCommonClass implements Registry.
func (r *BuiltinRegistry) GetCommonClass(a, b *exprtype.TypeInfo) (*exprtype.TypeInfo, bool) {
	return exprtype.CommonClass(a, b)
}

// ImplicitConvertible implements Registry.
func (r *BuiltinRegistry) ImplicitConvertible(from, to *exprtype.TypeInfo) bool {
	if exprtype.Equal(from, to) {
		return true
	}
	_, ok := exprtype.CommonClass(from, to)
	return ok
}

// GetUDFMethod implements Registry.
func (r *BuiltinRegistry) GetUDFMethod(targetTypeName string, fromType *exprtype.TypeInfo) (*UDFMethod, error) {
	name := "to_" + strings.ToLower(targetTypeName)
	candidates := r.udfs[key(name)]
	for _, c := range candidates {
		if len(c.ParamTypes) == 1 && exprtype.Equal(c.ParamTypes[0], fromType) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no conversion UDF from %s to %s", fromType, targetTypeName)
}
