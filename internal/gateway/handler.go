package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/revittco/toolmux/internal/audit"
	"github.com/revittco/toolmux/internal/downstream"
	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/search"
	"github.com/revittco/toolmux/internal/store"
)

const serverName = "toolmux"
const serverVersion = "0.1.0"
const protocolVersion = "2024-11-05"

// ToolInvoker abstracts the downstream manager for the one operation
// Handler needs: dispatching a validated call to a specific server.
type ToolInvoker interface {
	Call(ctx context.Context, serverUUID, toolName string, args json.RawMessage) (json.RawMessage, error)
	ListToolsForNamespace(ctx context.Context, namespaceUUID string) (map[string]json.RawMessage, error)
}

// Handler implements the three MCP methods this gateway serves, bound
// to one namespace/endpoint pair for the lifetime of the process
// (spec.md treats endpoint transport as external; one stdio process
// per client connection serves exactly one endpoint).
type Handler struct {
	store         store.Store
	resolver      *resolve.Resolver
	search        *search.Service
	manager       ToolInvoker
	auditor       *audit.Logger
	namespaceUUID string
	endpointUUID  string
	logger        *slog.Logger
}

// NewHandler builds a Handler bound to one namespace/endpoint pair.
func NewHandler(
	s store.Store,
	resolver *resolve.Resolver,
	svc *search.Service,
	manager ToolInvoker,
	auditor *audit.Logger,
	namespaceUUID, endpointUUID string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:         s,
		resolver:      resolver,
		search:        svc,
		manager:       manager,
		auditor:       auditor,
		namespaceUUID: namespaceUUID,
		endpointUUID:  endpointUUID,
		logger:        logger,
	}
}

// HandleInitialize implements the initialize RPC.
func (h *Handler) HandleInitialize(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    ServerCapability{Tools: &ToolCapability{ListChanged: true}},
		ServerInfo:      ServerInfo{Name: serverName, Version: serverVersion},
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

// HandleToolsList implements the tools/list RPC: fetch every upstream
// tool for the bound namespace, drop INACTIVE mappings, apply the
// defer-loading/visibility middleware (spec.md §4.F), and minify
// schemas unless disabled.
func (h *Handler) HandleToolsList(ctx context.Context) (json.RawMessage, *RPCError) {
	candidates, err := h.candidatePool(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("build tool pool: %v", err)}
	}

	resolved := h.resolver.GetResolvedConfig(ctx, h.namespaceUUID, h.endpointUUID)

	tools := make([]Tool, len(candidates))
	for i, c := range candidates {
		tools[i] = c.Tool
	}
	tools = ApplyDeferLoadingMiddleware(tools, resolved, h.logger)

	if slimToolsEnabled() {
		tools = minifyToolSchemas(tools)
	}

	data, err := json.Marshal(map[string]any{"tools": tools})
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

// HandleToolsCall implements the tools/call RPC, dispatching to the two
// built-ins by name. Any other tool name is not proxied: it gets an
// error result telling the client to call it via execute_tool.
func (h *Handler) HandleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	start := time.Now()

	var req CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	candidates, err := h.candidatePool(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("build tool pool: %v", err)}
	}
	resolved := h.resolver.GetResolvedConfig(ctx, h.namespaceUUID, h.endpointUUID)

	var result CallToolResult
	var rpcErr *RPCError

	switch req.Name {
	case ToolSearchTools:
		result, err = HandleSearchTools(ctx, h.search, resolved, h.namespaceUUID, h.endpointUUID, candidates, req.Arguments)
		if err != nil {
			rpcErr = &RPCError{Code: CodeInternalError, Message: err.Error()}
		}
	case ToolExecuteTool:
		result = HandleExecuteTool(ctx, candidates, h.proxy(), req.Arguments)
	default:
		result = errorResult(fmt.Sprintf("Tool %q is not search_tools or execute_tool; call it via execute_tool.", req.Name))
	}

	h.recordAudit(ctx, req.Name, req.Arguments, result, rpcErr, start)

	if rpcErr != nil {
		return nil, rpcErr
	}
	data, merr := json.Marshal(result)
	if merr != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
	}
	return data, nil
}

// proxy adapts the downstream manager into execute_tool's ProxyFunction,
// resolving the candidate's server UUID by tool name.
func (h *Handler) proxy() ProxyFunction {
	return func(ctx context.Context, toolName string, arguments json.RawMessage) (CallToolResult, error) {
		candidates, err := h.candidatePool(ctx)
		if err != nil {
			return CallToolResult{}, err
		}
		for _, c := range candidates {
			if c.Tool.Name != toolName {
				continue
			}
			raw, err := h.manager.Call(ctx, c.ServerUUID, unprefixedToolName(c.ServerName, toolName), arguments)
			if err != nil {
				return CallToolResult{}, err
			}
			return unmarshalCallResult(raw)
		}
		return CallToolResult{}, fmt.Errorf("tool %q no longer present in the pool", toolName)
	}
}

func unmarshalCallResult(raw json.RawMessage) (CallToolResult, error) {
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CallToolResult{}, fmt.Errorf("unmarshal downstream result: %w", err)
	}
	return result, nil
}

// unprefixedToolName strips the "sanitize(serverName)__" prefix this
// gateway adds, recovering the name the upstream server itself expects.
func unprefixedToolName(serverName, publicName string) string {
	prefix := SanitizeServerName(serverName) + "__"
	if len(publicName) > len(prefix) && publicName[:len(prefix)] == prefix {
		return publicName[len(prefix):]
	}
	return publicName
}

// candidatePool fetches every upstream tool for the bound namespace,
// tags each with its owning server, renames it to its public name, and
// drops any tool whose ToolMapping row is explicitly INACTIVE. A tool
// with no ToolMapping row at all is active by default: mappings only
// ever narrow the pool, they don't gate it open.
func (h *Handler) candidatePool(ctx context.Context) ([]CandidateTool, error) {
	servers, err := h.store.ListDownstreamServersByNamespace(ctx, h.namespaceUUID)
	if err != nil {
		return nil, fmt.Errorf("list downstream servers: %w", err)
	}
	serverNames := make(map[string]string, len(servers))
	for _, srv := range servers {
		serverNames[srv.UUID] = srv.Name
	}

	raw, err := h.manager.ListToolsForNamespace(ctx, h.namespaceUUID)
	if err != nil {
		return nil, fmt.Errorf("list upstream tools: %w", err)
	}

	inactive, err := h.inactiveTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tool mappings: %w", err)
	}

	var out []CandidateTool
	for serverUUID, toolsResult := range raw {
		srvName := serverNames[serverUUID]
		tools, err := extractTools(toolsResult)
		if err != nil {
			h.logger.Warn("failed to parse tools/list result", "server", serverUUID, "error", err)
			continue
		}
		for _, t := range tools {
			if inactive[toolMappingKey{serverUUID, t.Name}] {
				continue
			}
			t.Name = PublicToolName(srvName, t.Name)
			out = append(out, CandidateTool{Tool: t, ServerUUID: serverUUID, ServerName: srvName})
		}
	}
	return out, nil
}

type toolMappingKey struct {
	serverUUID string
	toolName   string
}

func (h *Handler) inactiveTools(ctx context.Context) (map[toolMappingKey]bool, error) {
	mappings, err := h.store.ListToolMappings(ctx, h.namespaceUUID)
	if err != nil {
		return nil, err
	}
	out := make(map[toolMappingKey]bool)
	for _, m := range mappings {
		if m.Status == store.ToolInactive {
			out[toolMappingKey{m.ServerUUID, m.ToolName}] = true
		}
	}
	return out, nil
}

func extractTools(raw json.RawMessage) ([]Tool, error) {
	if len(raw) == 0 || string(raw) == "{}" {
		return nil, nil
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (h *Handler) recordAudit(ctx context.Context, toolName string, args json.RawMessage, result CallToolResult, rpcErr *RPCError, start time.Time) {
	if h.auditor == nil {
		return
	}
	rec := audit.Record{
		EndpointUUID: h.endpointUUID,
		ToolName:     toolName,
		Method:       "tools/call",
		Duration:     time.Since(start),
		Params:       args,
	}
	if rpcErr != nil {
		rec.IsError = true
		rec.ErrorMessage = rpcErr.Message
	} else if result.IsError {
		rec.IsError = true
		if len(result.Content) > 0 {
			rec.ErrorMessage = result.Content[0].Text
		}
	}
	h.auditor.Record(ctx, rec)
}
