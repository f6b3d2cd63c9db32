package adapter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"

	"github.com/chromedap/bridge/rdp"
)

// VariableContainer is the polymorphic thing a variable handle points
// at: something that knows how to list, and optionally set, its own
// children.
type VariableContainer interface {
	expand(ctx context.Context, v *VariableMaterializer, filter string, start, count int) []dap.Variable
	setValue(ctx context.Context, v *VariableMaterializer, name, value string) (dap.Variable, error)
}

// PropertyContainer materializes the own/inherited properties of a
// plain object.
type PropertyContainer struct {
	ObjectID           string
	ParentEvaluateName string
}

// ScopeContainer materializes a call-frame scope; index 0 additionally
// injects a synthetic `this` and, if present, the return value.
type ScopeContainer struct {
	CallFrameID string
	ScopeIndex  int
	ObjectID    string
	This        *rdp.RemoteObject
	ReturnValue *rdp.RemoteObject
}

// ExceptionContainer wraps the exception current at the last pause.
type ExceptionContainer struct {
	Exception rdp.RemoteObject
}

// LoggedObjects wraps one console call's argument list.
type LoggedObjects struct {
	Args []rdp.RemoteObject
}

// VariableMaterializer is C5: it owns the variable handle table and
// knows how to turn RDP remote objects into DAP variables.
type VariableMaterializer struct {
	handles *HandleTable[VariableContainer]
	runtime *rdp.Runtime
	debugger *rdp.Debugger
}

func NewVariableMaterializer(runtime *rdp.Runtime, debugger *rdp.Debugger) *VariableMaterializer {
	return &VariableMaterializer{
		handles:  NewHandleTable[VariableContainer](),
		runtime:  runtime,
		debugger: debugger,
	}
}

func (v *VariableMaterializer) NewHandle(c VariableContainer) int { return v.handles.New(c) }

// ResetEpoch clears every outstanding variable handle, called on each
// new pause.
func (v *VariableMaterializer) ResetEpoch() { v.handles.Reset() }

// Variables implements the DAP variables request: errors during
// expansion are logged and produce an empty list rather than failing
// the request.
func (v *VariableMaterializer) Variables(ctx context.Context, varRef int, filter string, start, count int) []dap.Variable {
	c, ok := v.handles.Get(varRef)
	if !ok {
		return []dap.Variable{}
	}

	vars := func() (out []dap.Variable) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("recover", r).Error("panic expanding variable container")
				out = []dap.Variable{}
			}
		}()
		return c.expand(ctx, v, filter, start, count)
	}()
	if vars == nil {
		vars = []dap.Variable{}
	}
	return vars
}

func (v *VariableMaterializer) SetVariable(ctx context.Context, varRef int, name, value string) (dap.Variable, error) {
	c, ok := v.handles.Get(varRef)
	if !ok {
		return dap.Variable{}, fmt.Errorf("no such variable container: %d", varRef)
	}
	return c.setValue(ctx, v, name, value)
}

func (c *ScopeContainer) expand(ctx context.Context, v *VariableMaterializer, filter string, start, count int) []dap.Variable {
	var out []dap.Variable
	if c.ScopeIndex == 0 {
		if c.This != nil {
			out = append(out, v.remoteObjectToVariable(ctx, "this", *c.This, ""))
		}
		if c.ReturnValue != nil {
			out = append(out, v.remoteObjectToVariable(ctx, "Return value", *c.ReturnValue, ""))
		}
	}
	out = append(out, (&PropertyContainer{ObjectID: c.ObjectID}).expand(ctx, v, filter, start, count)...)
	return out
}

func (c *ScopeContainer) setValue(ctx context.Context, v *VariableMaterializer, name, value string) (dap.Variable, error) {
	res, err := v.debugger.EvaluateOnCallFrame(ctx, rdp.EvaluateOnCallFrameParams{CallFrameId: c.CallFrameID, Expression: value, Silent: true})
	if err != nil {
		return dap.Variable{}, err
	}
	if res.ExceptionDetails != nil {
		return dap.Variable{}, fmt.Errorf("%s", res.ExceptionDetails.Text)
	}
	if err := v.debugger.SetVariableValue(ctx, c.ScopeIndex, name, res.Result, c.CallFrameID); err != nil {
		return dap.Variable{}, err
	}
	return v.remoteObjectToVariable(ctx, name, res.Result, ""), nil
}

func (c *ExceptionContainer) expand(ctx context.Context, v *VariableMaterializer, filter string, start, count int) []dap.Variable {
	return []dap.Variable{v.remoteObjectToVariable(ctx, "exception", c.Exception, "")}
}

func (c *ExceptionContainer) setValue(context.Context, *VariableMaterializer, string, string) (dap.Variable, error) {
	return dap.Variable{}, fmt.Errorf("exception scope is read-only")
}

func (c *LoggedObjects) expand(ctx context.Context, v *VariableMaterializer, filter string, start, count int) []dap.Variable {
	out := make([]dap.Variable, len(c.Args))
	for i, a := range c.Args {
		out[i] = v.remoteObjectToVariable(ctx, strconv.Itoa(i), a, "")
	}
	return out
}

func (c *LoggedObjects) setValue(context.Context, *VariableMaterializer, string, string) (dap.Variable, error) {
	return dap.Variable{}, fmt.Errorf("logged arguments are read-only")
}

func (c *PropertyContainer) expand(ctx context.Context, v *VariableMaterializer, filter string, start, count int) []dap.Variable {
	if start != 0 || count != 0 {
		return v.slicedExpand(ctx, c, start, count)
	}

	accessors, err1 := v.runtime.GetProperties(ctx, rdp.GetPropertiesParams{ObjectId: c.ObjectID, AccessorPropertiesOnly: true})
	own, err2 := v.runtime.GetProperties(ctx, rdp.GetPropertiesParams{ObjectId: c.ObjectID, OwnProperties: true, GeneratePreview: true})
	if err1 != nil && err2 != nil {
		if isBenignMissingContext(err2) {
			return []dap.Variable{}
		}
		logrus.WithError(err2).Warn("getProperties failed")
		return []dap.Variable{}
	}

	merged := make(map[string]rdp.PropertyDescriptor)
	for _, p := range accessors.Result {
		merged[p.Name] = p
	}
	for _, p := range own.Result {
		merged[p.Name] = p
	}

	names := make([]string, 0, len(merged))
	for n := range merged {
		names = append(names, n)
	}
	sortPropertyNames(names)

	out := make([]dap.Variable, 0, len(names)+len(own.InternalProperties))
	for _, n := range names {
		p := merged[n]
		if !filterKeepsName(filter, n) {
			continue
		}
		out = append(out, v.propertyToVariable(ctx, c, p))
	}
	for _, p := range own.InternalProperties {
		if p.Value == nil || !filterKeepsName(filter, p.Name) {
			continue
		}
		out = append(out, v.remoteObjectToVariable(ctx, p.Name, *p.Value, evalName(c.ParentEvaluateName, p.Name)))
	}
	return out
}

func (c *PropertyContainer) setValue(ctx context.Context, v *VariableMaterializer, name, value string) (dap.Variable, error) {
	res, err := v.runtime.CallFunctionOn(ctx, rdp.CallFunctionOnParams{
		FunctionDeclaration: "function(){ return this[" + strconv.Quote(name) + "] = " + value + " }",
		ObjectId:            c.ObjectID,
		Silent:              true,
	})
	if err != nil {
		return dap.Variable{}, err
	}
	if res.ExceptionDetails != nil {
		return dap.Variable{}, fmt.Errorf("%s", res.ExceptionDetails.Text)
	}
	return v.remoteObjectToVariable(ctx, name, res.Result, evalName(c.ParentEvaluateName, name)), nil
}

func (v *VariableMaterializer) slicedExpand(ctx context.Context, c *PropertyContainer, start, count int) []dap.Variable {
	const indexedFn = "function(s,c){var r=[];for(var i=s;i<s+c;i++)r[i]=this[i];return r}"
	const namedFn = "function(s,c){var r=[];var keys=Object.getOwnPropertyNames(this);for(var i=s;i<s+c && i<keys.length;i++)r[i]=this[keys[i]];return r}"

	fn := indexedFn
	res, err := v.runtime.CallFunctionOn(ctx, rdp.CallFunctionOnParams{
		FunctionDeclaration: fn,
		ObjectId:            c.ObjectID,
		Arguments:           []rdp.CallArgument{{Value: start}, {Value: count}},
		GeneratePreview:     true,
	})
	if err != nil || res.Result.ObjectId == "" {
		fn = namedFn
		res, err = v.runtime.CallFunctionOn(ctx, rdp.CallFunctionOnParams{
			FunctionDeclaration: fn,
			ObjectId:            c.ObjectID,
			Arguments:           []rdp.CallArgument{{Value: start}, {Value: count}},
			GeneratePreview:     true,
		})
		if err != nil {
			return []dap.Variable{}
		}
	}

	indexed, err := v.runtime.GetProperties(ctx, rdp.GetPropertiesParams{ObjectId: res.Result.ObjectId, OwnProperties: true})
	if err != nil {
		return []dap.Variable{}
	}

	out := make([]dap.Variable, 0, len(indexed.Result))
	for _, p := range indexed.Result {
		if !isNumericName(p.Name) || p.Value == nil {
			continue
		}
		out = append(out, v.remoteObjectToVariable(ctx, p.Name, *p.Value, evalName(c.ParentEvaluateName, p.Name)))
	}
	return out
}

func (v *VariableMaterializer) propertyToVariable(ctx context.Context, c *PropertyContainer, p rdp.PropertyDescriptor) dap.Variable {
	if p.Value != nil {
		return v.remoteObjectToVariable(ctx, p.Name, *p.Value, evalName(c.ParentEvaluateName, p.Name))
	}
	if p.Get != nil && p.Get.ObjectId != "" {
		res, err := v.runtime.CallFunctionOn(ctx, rdp.CallFunctionOnParams{
			FunctionDeclaration: "function(n){return this[n]}",
			ObjectId:            c.ObjectID,
			Arguments:           []rdp.CallArgument{{Value: p.Name}},
		})
		if err != nil {
			return dap.Variable{Name: p.Name, Value: err.Error()}
		}
		if res.ExceptionDetails != nil {
			return dap.Variable{Name: p.Name, Value: res.ExceptionDetails.Text}
		}
		return v.remoteObjectToVariable(ctx, p.Name, res.Result, evalName(c.ParentEvaluateName, p.Name))
	}
	return dap.Variable{Name: p.Name, Value: "undefined"}
}

// remoteObjectToVariable implements the remote-object → DAP variable
// conversion rules, allocating a new handle for any non-primitive.
func (v *VariableMaterializer) remoteObjectToVariable(_ context.Context, name string, obj rdp.RemoteObject, evalNameHint string) dap.Variable {
	ename := evalName(evalNameHint, name)

	if (obj.Type != "object" && obj.Type != "function") || obj.Subtype == "null" || obj.Subtype == "internal#location" {
		return dap.Variable{Name: name, Value: primitivePreview(obj), Type: obj.Type, EvaluateName: ename}
	}

	value := obj.Description
	switch {
	case obj.Type == "function":
		if i := strings.Index(value, "{"); i >= 0 {
			value = strings.TrimSpace(value[:i]) + " { … }"
		} else if i := strings.Index(value, "=>"); i >= 0 {
			value = strings.TrimSpace(value[:i]) + " => …"
		}
	case obj.Preview != nil:
		value = previewString(*obj.Preview)
	}

	varRef := 0
	indexed, named := 0, 0
	if obj.ObjectId != "" {
		varRef = v.NewHandle(&PropertyContainer{ObjectID: obj.ObjectId, ParentEvaluateName: ename})
		indexed, named = previewCounts(obj)
	}

	return dap.Variable{
		Name:               name,
		Value:              value,
		Type:               obj.Type,
		EvaluateName:       ename,
		VariablesReference: varRef,
		IndexedVariables:   indexed,
		NamedVariables:     named,
	}
}

func previewCounts(obj rdp.RemoteObject) (indexed, named int) {
	if obj.Preview == nil {
		return 0, 0
	}
	switch obj.Subtype {
	case "array", "typedarray":
		maxIdx := -1
		nonIndexed := 0
		for _, p := range obj.Preview.Properties {
			if isNumericName(p.Name) {
				if n, err := strconv.Atoi(p.Name); err == nil && n > maxIdx {
					maxIdx = n
				}
			} else {
				nonIndexed++
			}
		}
		return maxIdx + 1, nonIndexed + 2
	case "map", "set":
		return 0, len(obj.Preview.Properties) + 1
	default:
		return 0, len(obj.Preview.Properties)
	}
}

func previewString(p rdp.ObjectPreview) string {
	var parts []string
	for _, pp := range p.Properties {
		parts = append(parts, pp.Name+": "+pp.Value)
	}
	s := p.Description
	if len(parts) > 0 {
		s += " {" + strings.Join(parts, ", ") + "}"
	}
	if p.Overflow {
		s += ", …"
	}
	return s
}

func primitivePreview(obj rdp.RemoteObject) string {
	if obj.UnserializableValue != "" {
		return obj.UnserializableValue
	}
	if obj.Value == nil {
		if obj.Subtype == "null" {
			return "null"
		}
		if obj.Type == "undefined" {
			return "undefined"
		}
		return obj.Description
	}
	switch v := obj.Value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func evalName(parent, name string) string {
	if parent == "" {
		return name
	}
	if isNumericName(name) {
		return parent + "[" + name + "]"
	}
	return parent + "." + name
}

func isNumericName(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

func filterKeepsName(filter, name string) bool {
	switch filter {
	case "indexed":
		return isNumericName(name)
	case "named":
		return !isNumericName(name)
	default:
		return true
	}
}

func sortPropertyNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, ei := strconv.Atoi(names[i])
		nj, ej := strconv.Atoi(names[j])
		if ei == nil && ej == nil {
			return ni < nj
		}
		if ei == nil {
			return true
		}
		if ej == nil {
			return false
		}
		return names[i] < names[j]
	})
}

func isBenignMissingContext(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Cannot find context with specified id")
}
