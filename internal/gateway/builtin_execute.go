package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const executeToolInputSchema = `{
	"type": "object",
	"required": ["tool_name", "arguments"],
	"properties": {
		"tool_name": {"type": "string"},
		"arguments": {"type": "object", "additionalProperties": true}
	}
}`

const defaultToolSchema = `{"type": "object", "additionalProperties": true}`

// ExecuteToolDefinition is the built-in execute_tool tool (spec.md §4.D).
func ExecuteToolDefinition() Tool {
	return Tool{
		Name:        ToolExecuteTool,
		Description: "Validate arguments against a discovered tool's schema and dispatch the call.",
		InputSchema: json.RawMessage(executeToolInputSchema),
	}
}

// ProxyFunction dispatches a validated call to the resolved upstream
// tool. execute_tool delegates to it verbatim; a returned error becomes
// an isError:true result rather than propagating.
type ProxyFunction func(ctx context.Context, toolName string, arguments json.RawMessage) (CallToolResult, error)

type executeToolArgs struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// HandleExecuteTool implements execute_tool's dispatch algorithm
// (spec.md §4.D). It never returns a Go error: every failure mode —
// malformed arguments, a builtin name, an unknown tool, a schema
// validation failure, or a proxy error — converts to an isError:true
// CallToolResult.
func HandleExecuteTool(
	ctx context.Context,
	candidates []CandidateTool,
	proxy ProxyFunction,
	rawArgs json.RawMessage,
) CallToolResult {
	var args executeToolArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil || args.ToolName == "" {
		return errorResult("execute_tool arguments invalid: tool_name must be a string and arguments a non-null object.")
	}

	var argMap map[string]json.RawMessage
	if len(args.Arguments) == 0 {
		return errorResult("execute_tool arguments invalid: tool_name must be a string and arguments a non-null object.")
	}
	// json.Unmarshal("null", &argMap) returns a nil error with argMap
	// left nil — a literal JSON null must be rejected explicitly rather
	// than relying on this falling through to schema validation.
	if err := json.Unmarshal(args.Arguments, &argMap); err != nil || argMap == nil {
		return errorResult("execute_tool arguments invalid: tool_name must be a string and arguments a non-null object.")
	}

	// Step 1: refuse builtins by name, never by metadata — prevents recursion.
	if isBuiltinName(args.ToolName) {
		return errorResult(fmt.Sprintf("Cannot execute builtin tool %q", args.ToolName))
	}

	// Step 2: find the unique matching tool.
	var found *CandidateTool
	names := make([]string, 0, len(candidates))
	for i := range candidates {
		names = append(names, candidates[i].Tool.Name)
		if candidates[i].Tool.Name == args.ToolName {
			found = &candidates[i]
		}
	}
	if found == nil {
		return errorResult(notFoundMessage(args.ToolName, names))
	}

	// Step 3/4: validate arguments against the tool's schema.
	if errs := validateAgainstSchema(found.Tool.InputSchema, args.Arguments); len(errs) > 0 {
		return errorResult(validationFailureMessage(errs, found.Tool.InputSchema))
	}

	// Step 5: delegate to the proxy and return its result verbatim.
	result, err := proxy(ctx, args.ToolName, args.Arguments)
	if err != nil {
		return errorResult(fmt.Sprintf("Error executing tool %q: %v", args.ToolName, err))
	}
	return result
}

func notFoundMessage(name string, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool %q not found.", name)

	if len(names) == 0 {
		b.WriteString(" No candidate tools are available.")
	} else {
		shown := names
		overflow := 0
		if len(shown) > 10 {
			overflow = len(shown) - 10
			shown = shown[:10]
		}
		fmt.Fprintf(&b, " Candidates: %s.", strings.Join(shown, ", "))
		if overflow > 0 {
			fmt.Fprintf(&b, " ... and %d more tools.", overflow)
		}
	}
	b.WriteString(" Call search_tools to discover tools.")
	return b.String()
}

// validateAgainstSchema validates rawArgs against rawSchema with a
// permissive, allErrors-style validator. A missing schema is treated as
// {type:"object", additionalProperties:true}; a schema that fails to
// compile is reported as a single error rather than returned as a Go
// error, per spec.md §4.D step 3.
func validateAgainstSchema(rawSchema, rawArgs json.RawMessage) []string {
	schemaBytes := rawSchema
	if len(schemaBytes) == 0 {
		schemaBytes = json.RawMessage(defaultToolSchema)
	}

	compiler := jsonschema.NewCompiler()
	const resourceURL = "toolmux://tool-schema.json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(schemaBytes)); err != nil {
		return []string{fmt.Sprintf("  - (root): Invalid tool schema: %v", err)}
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return []string{fmt.Sprintf("  - (root): Invalid tool schema: %v", err)}
	}

	var instance any
	if err := json.Unmarshal(rawArgs, &instance); err != nil {
		return []string{fmt.Sprintf("  - (root): arguments are not valid JSON: %v", err)}
	}

	if err := schema.Validate(instance); err != nil {
		return flattenValidationErrors(err)
	}
	return nil
}

func flattenValidationErrors(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{"  - (root): " + err.Error()}
	}

	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			path := e.InstanceLocation
			if path == "" {
				path = "(root)"
			}
			out = append(out, fmt.Sprintf("  - %s: %s", path, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

func validationFailureMessage(errs []string, schema json.RawMessage) string {
	var b strings.Builder
	b.WriteString("Tool arguments validation failed:\n")

	shown := errs
	overflow := 0
	if len(shown) > 10 {
		overflow = len(shown) - 10
		shown = shown[:10]
	}
	for _, e := range shown {
		b.WriteString(e)
		b.WriteString("\n")
	}
	if overflow > 0 {
		fmt.Fprintf(&b, "  ... and %d more errors\n", overflow)
	}

	b.WriteString("\nExpected input schema:\n")
	b.WriteString(prettyJSON(schema))
	return b.String()
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		raw = json.RawMessage(defaultToolSchema)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
