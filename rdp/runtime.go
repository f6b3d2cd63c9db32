package rdp

import "context"

// Runtime wraps the Runtime domain of the RDP client.
type Runtime struct {
	c Client
}

func NewRuntime(c Client) *Runtime { return &Runtime{c: c} }

func (r *Runtime) Enable(ctx context.Context) error {
	return r.c.Call(ctx, "Runtime.enable", struct{}{}, nil)
}

type EvaluateParams struct {
	Expression    string `json:"expression"`
	Silent        bool   `json:"silent,omitempty"`
	ContextId     int    `json:"contextId,omitempty"`
	ReturnByValue bool   `json:"returnByValue,omitempty"`
}

func (r *Runtime) Evaluate(ctx context.Context, p EvaluateParams) (EvaluateResult, error) {
	var out EvaluateResult
	err := r.c.Call(ctx, "Runtime.evaluate", p, &out)
	return out, err
}

type CallFunctionOnParams struct {
	FunctionDeclaration string         `json:"functionDeclaration"`
	ObjectId            string         `json:"objectId,omitempty"`
	Arguments           []CallArgument `json:"arguments,omitempty"`
	Silent              bool           `json:"silent,omitempty"`
	ReturnByValue       bool           `json:"returnByValue,omitempty"`
	GeneratePreview     bool           `json:"generatePreview,omitempty"`
}

type CallArgument struct {
	Value    any    `json:"value,omitempty"`
	ObjectId string `json:"objectId,omitempty"`
}

func (r *Runtime) CallFunctionOn(ctx context.Context, p CallFunctionOnParams) (EvaluateResult, error) {
	var out EvaluateResult
	err := r.c.Call(ctx, "Runtime.callFunctionOn", p, &out)
	return out, err
}

type GetPropertiesParams struct {
	ObjectId                 string `json:"objectId"`
	OwnProperties            bool   `json:"ownProperties"`
	AccessorPropertiesOnly   bool   `json:"accessorPropertiesOnly"`
	GeneratePreview          bool   `json:"generatePreview,omitempty"`
}

type GetPropertiesResult struct {
	Result             []PropertyDescriptor         `json:"result"`
	InternalProperties []InternalPropertyDescriptor `json:"internalProperties,omitempty"`
}

func (r *Runtime) GetProperties(ctx context.Context, p GetPropertiesParams) (GetPropertiesResult, error) {
	var out GetPropertiesResult
	err := r.c.Call(ctx, "Runtime.getProperties", p, &out)
	return out, err
}
