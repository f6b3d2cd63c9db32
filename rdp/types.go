package rdp

// RemoteObject mirrors Runtime.RemoteObject: a reference to a value living
// in the runtime, possibly with an inline preview.
type RemoteObject struct {
	Type                string           `json:"type"`
	Subtype             string           `json:"subtype,omitempty"`
	ClassName           string           `json:"className,omitempty"`
	Value               any              `json:"value,omitempty"`
	UnserializableValue string           `json:"unserializableValue,omitempty"`
	Description         string           `json:"description,omitempty"`
	ObjectId            string           `json:"objectId,omitempty"`
	Preview             *ObjectPreview   `json:"preview,omitempty"`
}

// ObjectPreview mirrors Runtime.ObjectPreview.
type ObjectPreview struct {
	Type        string            `json:"type"`
	Subtype     string            `json:"subtype,omitempty"`
	Description string            `json:"description,omitempty"`
	Overflow    bool              `json:"overflow"`
	Properties  []PropertyPreview `json:"properties"`
}

// PropertyPreview mirrors Runtime.PropertyPreview.
type PropertyPreview struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// PropertyDescriptor mirrors Runtime.PropertyDescriptor.
type PropertyDescriptor struct {
	Name         string        `json:"name"`
	Value        *RemoteObject `json:"value,omitempty"`
	Get          *RemoteObject `json:"get,omitempty"`
	Set          *RemoteObject `json:"set,omitempty"`
	Enumerable   bool          `json:"enumerable"`
	Writable     bool          `json:"writable,omitempty"`
	Configurable bool          `json:"configurable"`
}

// InternalPropertyDescriptor mirrors Runtime.InternalPropertyDescriptor,
// used for slots like [[Entries]] or [[Prototype]].
type InternalPropertyDescriptor struct {
	Name  string        `json:"name"`
	Value *RemoteObject `json:"value,omitempty"`
}

// ExceptionDetails mirrors Runtime.ExceptionDetails.
type ExceptionDetails struct {
	ExceptionId  int           `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int           `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	ScriptId     string        `json:"scriptId,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

// Location mirrors Debugger.Location.
type Location struct {
	ScriptId     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
}

// ScriptPosition mirrors Debugger.ScriptPosition, used for blackboxed ranges.
type ScriptPosition struct {
	LineNumber   int `json:"lineNumber"`
	ColumnNumber int `json:"columnNumber"`
}

// BreakLocation mirrors Debugger.BreakLocation, a candidate returned by
// getPossibleBreakpoints.
type BreakLocation struct {
	ScriptId     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
	Type         string `json:"type,omitempty"`
}

// CallFrame mirrors Debugger.CallFrame.
type CallFrame struct {
	CallFrameId  string        `json:"callFrameId"`
	FunctionName string        `json:"functionName"`
	Location     Location      `json:"location"`
	ScopeChain   []Scope       `json:"scopeChain"`
	This         *RemoteObject `json:"this,omitempty"`
	ReturnValue  *RemoteObject `json:"returnValue,omitempty"`
}

// Scope mirrors Debugger.Scope.
type Scope struct {
	Type          string        `json:"type"`
	Object        *RemoteObject `json:"object"`
	Name          string        `json:"name,omitempty"`
	StartLocation *Location     `json:"startLocation,omitempty"`
	EndLocation   *Location     `json:"endLocation,omitempty"`
}

// StackTrace mirrors Runtime.StackTrace, including the async parent chain.
type StackTrace struct {
	Description string          `json:"description,omitempty"`
	CallFrames  []StackFrame    `json:"callFrames"`
	Parent      *StackTrace     `json:"parent,omitempty"`
}

// StackFrame mirrors Runtime.CallFrame (the lightweight async variant, not
// to be confused with Debugger.CallFrame).
type StackFrame struct {
	FunctionName string `json:"functionName"`
	ScriptId     string `json:"scriptId"`
	Url          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// PausedEvent mirrors Debugger.paused.
type PausedEvent struct {
	CallFrames       []CallFrame   `json:"callFrames"`
	Reason           string        `json:"reason"`
	Data             *RemoteObject `json:"data,omitempty"`
	HitBreakpoints   []string      `json:"hitBreakpoints,omitempty"`
	AsyncStackTrace  *StackTrace   `json:"asyncStackTrace,omitempty"`
}

// ScriptParsedEvent mirrors Debugger.scriptParsed.
type ScriptParsedEvent struct {
	ScriptId      string `json:"scriptId"`
	Url           string `json:"url"`
	SourceMapURL  string `json:"sourceMapURL,omitempty"`
}

// BreakpointResolvedEvent mirrors Debugger.breakpointResolved.
type BreakpointResolvedEvent struct {
	BreakpointId string   `json:"breakpointId"`
	Location     Location `json:"location"`
}

// ConsoleAPICalledEvent mirrors Runtime.consoleAPICalled.
type ConsoleAPICalledEvent struct {
	Type string         `json:"type"`
	Args []RemoteObject `json:"args"`
}

// ExceptionThrownEvent mirrors Runtime.exceptionThrown.
type ExceptionThrownEvent struct {
	ExceptionDetails ExceptionDetails `json:"exceptionDetails"`
}

// ConsoleMessageAddedEvent mirrors the legacy Console.messageAdded event,
// which the adapter remaps into a synthetic ConsoleAPICalledEvent.
type ConsoleMessageAddedEvent struct {
	Message struct {
		Level string   `json:"level"`
		Text  string   `json:"text"`
		Parameters []RemoteObject `json:"parameters,omitempty"`
	} `json:"message"`
}
