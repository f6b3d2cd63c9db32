package adapter

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-dap"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

const maxScriptSourceChars = 100000

// Evaluator is C7: the evaluate/completions/exceptionInfo request path.
type Evaluator struct {
	pause    *PauseState
	vars     *VariableMaterializer
	debugger *rdp.Debugger
	runtime  *rdp.Runtime
	scripts  *ScriptRegistry

	path    transform.PathTransformer
	srcMap  transform.SourceMapTransformer
	lineCol transform.LineColTransformer

	output chan<- dap.Message
}

func NewEvaluator(pause *PauseState, vars *VariableMaterializer, debugger *rdp.Debugger, runtime *rdp.Runtime, scripts *ScriptRegistry, path transform.PathTransformer, srcMap transform.SourceMapTransformer, lineCol transform.LineColTransformer, output chan<- dap.Message) *Evaluator {
	return &Evaluator{pause: pause, vars: vars, debugger: debugger, runtime: runtime, scripts: scripts, path: path, srcMap: srcMap, lineCol: lineCol, output: output}
}

// Evaluate implements the evaluate request.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, frameID int, replContext string) (dap.EvaluateResponse, error) {
	var resp dap.EvaluateResponse

	if strings.HasPrefix(strings.TrimSpace(expr), ".scripts") {
		e.runMetaCommand(expr)
		return resp, nil
	}

	e.pause.WaitQuiescent(ctx)

	var result rdp.EvaluateResult
	var err error
	if cf, ok := e.pause.FrameByHandle(frameID); ok {
		result, err = e.debugger.EvaluateOnCallFrame(ctx, rdp.EvaluateOnCallFrameParams{
			CallFrameId: cf.CallFrameId, Expression: expr, Silent: true,
		})
	} else {
		result, err = e.runtime.Evaluate(ctx, rdp.EvaluateParams{Expression: expr, Silent: true})
	}
	if err != nil {
		return resp, err
	}

	if result.ExceptionDetails != nil {
		msg := result.ExceptionDetails.Text
		if replContext != "repl" {
			if remapped, ok := remapCannedException(msg); ok {
				msg = remapped
			}
		}
		return resp, errors.New(msg)
	}

	v := e.vars.remoteObjectToVariable(ctx, "", result.Result, "")
	resp.Body.Result = v.Value
	resp.Body.Type = v.Type
	resp.Body.VariablesReference = v.VariablesReference
	resp.Body.IndexedVariables = v.IndexedVariables
	resp.Body.NamedVariables = v.NamedVariables
	return resp, nil
}

func remapCannedException(msg string) (string, bool) {
	if strings.HasPrefix(msg, "ReferenceError:") || strings.HasPrefix(msg, "TypeError:") {
		return "evaluation not available", true
	}
	return "", false
}

// runMetaCommand handles ".scripts" / ".scripts <path>" via a tiny cobra
// tree parsed with shlex, writing its result as an Output event.
func (e *Evaluator) runMetaCommand(expr string) {
	args, err := shlex.Split(expr)
	if err != nil || len(args) == 0 {
		return
	}

	var out string
	cmd := &cobra.Command{
		Use:           args[0],
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, cargs []string) error {
			if len(cargs) == 0 {
				out = e.listScripts()
				return nil
			}
			src, err := e.scriptSource(cargs[0])
			if err != nil {
				return err
			}
			out = src
			return nil
		},
	}
	cmd.SetArgs(args[1:])
	if err := cmd.Execute(); err != nil {
		out = err.Error()
	}

	e.output <- &dap.OutputEvent{
		Event: dap.Event{Event: "output"},
		Body:  dap.OutputEventBody{Output: out + "\n"},
	}
}

func (e *Evaluator) listScripts() string {
	scripts := e.scripts.All()
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].URL < scripts[j].URL })

	var b strings.Builder
	for _, s := range scripts {
		client, _ := e.path.TargetUrlToClientPath(context.Background(), s.URL)
		fmt.Fprintf(&b, "› %s (%s)\n", s.URL, client)
		for _, src := range s.AuthoredSources {
			fmt.Fprintf(&b, "    %s\n", src.Path)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Evaluator) scriptSource(nameOrURL string) (string, error) {
	for _, s := range e.scripts.All() {
		if s.URL == nameOrURL || baseName(s.URL) == nameOrURL {
			src, err := e.debugger.GetScriptSource(context.Background(), s.ID)
			if err != nil {
				return "", err
			}
			if len(src) > maxScriptSourceChars {
				src = src[:maxScriptSourceChars] + "[⋯]"
			}
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown script: %s", nameOrURL)
}

// Completions implements the completions request.
func (e *Evaluator) Completions(ctx context.Context, text string, column int, frameID int) []dap.CompletionItem {
	if column > len(text) {
		column = len(text)
	}
	prefix := text[:column]
	dot := strings.LastIndexByte(prefix, '.')

	var names []string
	if dot >= 0 {
		expr := prefix[:dot]
		const walkFn = "(function(x){var a=[];for(var o=x;o;o=o.__proto__)a.push(Object.getOwnPropertyNames(o));return a})(%s)"
		call := fmt.Sprintf(walkFn, expr)

		var result rdp.EvaluateResult
		var err error
		if cf, ok := e.pause.FrameByHandle(frameID); ok {
			result, err = e.debugger.EvaluateOnCallFrame(ctx, rdp.EvaluateOnCallFrameParams{CallFrameId: cf.CallFrameId, Expression: call, ReturnByValue: true, Silent: true})
		} else {
			result, err = e.runtime.Evaluate(ctx, rdp.EvaluateParams{Expression: call, ReturnByValue: true, Silent: true})
		}
		if err == nil && result.ExceptionDetails == nil {
			if lists, ok := result.Result.Value.([]any); ok {
				for _, l := range lists {
					if arr, ok := l.([]any); ok {
						for _, n := range arr {
							if s, ok := n.(string); ok {
								names = append(names, s)
							}
						}
					}
				}
			}
		}
	} else if cf, ok := e.pause.FrameByHandle(frameID); ok {
		for _, sc := range cf.ScopeChain {
			if sc.Object == nil || sc.Object.ObjectId == "" {
				continue
			}
			props, err := e.runtime.GetProperties(ctx, rdp.GetPropertiesParams{ObjectId: sc.Object.ObjectId, OwnProperties: true})
			if err != nil {
				continue
			}
			for _, p := range props.Result {
				names = append(names, p.Name)
			}
		}
	}

	return uniqueNonNumericCompletions(names)
}

func uniqueNonNumericCompletions(names []string) []dap.CompletionItem {
	seen := make(map[string]bool)
	var out []dap.CompletionItem
	for _, n := range names {
		if isNumericName(n) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, dap.CompletionItem{Label: n, Type: "property"})
	}
	return out
}

// ExceptionInfo implements the exceptionInfo request.
func (e *Evaluator) ExceptionInfo(threadID int) (dap.ExceptionInfoResponseBody, error) {
	if threadID != 1 {
		return dap.ExceptionInfoResponseBody{}, fmt.Errorf("no such thread: %d", threadID)
	}
	exc := e.pause.CurrentException()
	if exc == nil {
		return dap.ExceptionInfoResponseBody{}, fmt.Errorf("no current exception")
	}

	return dap.ExceptionInfoResponseBody{
		ExceptionId: exc.ClassName,
		BreakMode:   "unhandled",
		Details: dap.ExceptionDetails{
			StackTrace: e.mapFormattedException(context.Background(), exc.Description),
		},
	}, nil
}

var stackLineRE = regexp.MustCompile(`^(\s+at )(.*?)\s*\(?([^ ]+):(\d+):(\d+)\)?$`)

// mapFormattedException is the pure stack-trace string remapping
// described in 4.8: lines matching the "at f (file:line:col)" shape get
// their location translated; other lines pass through unchanged.
func (e *Evaluator) mapFormattedException(ctx context.Context, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := stackLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		prefix, fn, file, lineStr, colStr := m[1], m[2], m[3], m[4], m[5]
		ln, _ := strconv.Atoi(lineStr)
		col, _ := strconv.Atoi(colStr)
		ln--

		path, mappedLn, mappedCol, ok := e.srcMap.MapToAuthored(ctx, file, ln, col)
		if ok {
			ln, col = mappedLn, mappedCol
		} else {
			path, ok = e.path.TargetUrlToClientPath(ctx, file)
		}
		if !ok {
			continue
		}
		lines[i] = fmt.Sprintf("%s%s(%s:%d:%d)", prefix, fnOrEmpty(fn), path, ln+1, col)
	}
	return strings.Join(lines, "\n")
}

func fnOrEmpty(fn string) string {
	if fn == "" {
		return ""
	}
	return fn + " "
}
