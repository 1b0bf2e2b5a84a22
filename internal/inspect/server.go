package inspect

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names served by every inspection server.
const (
	ToolControllers = "cxp_controllers"
	ToolEnvironment = "cxp_environment"
	ToolConnections = "cxp_connections"
)

// controllerArgSchema is the input schema shared by the per-controller
// tools.
var controllerArgSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"controller": {
			Type:        "string",
			Description: "Name the controller was registered under",
		},
	},
	Required: []string{"controller"},
}

// Server answers inspection tool calls against a Registry.
//
// The official SDK's Server is built around transports (stdio, HTTP, SSE),
// so Server keeps its own tool table for direct in-process invocation.
type Server struct {
	name     string
	version  string
	registry *Registry

	mu    sync.RWMutex
	tools map[string]*serverTool
}

// serverTool pairs a tool's metadata with its handler.
type serverTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer returns a server exposing the standard inspection tools over
// registry. Additional tools can be attached with AddTool.
func NewServer(name, version string, registry *Registry) *Server {
	s := &Server{
		name:     name,
		version:  version,
		registry: registry,
		tools:    make(map[string]*serverTool, 8),
	}

	s.AddTool(&mcp.Tool{
		Name:        ToolControllers,
		Description: "List the controllers registered for inspection",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleControllers)

	s.AddTool(&mcp.Tool{
		Name:        ToolEnvironment,
		Description: "Show a controller's current environment snapshot",
		InputSchema: controllerArgSchema,
	}, s.handleEnvironment)

	s.AddTool(&mcp.Tool{
		Name:        ToolConnections,
		Description: "Show a controller's extension connections and their states",
		InputSchema: controllerArgSchema,
	}, s.handleConnections)

	return s
}

// AddTool registers a tool, replacing any tool with the same name.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &serverTool{
		tool:    tool,
		handler: handler,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Version returns the server version string.
func (s *Server) Version() string {
	return s.version
}

// ServerInfo returns server information for an MCP initialize response.
func (s *Server) ServerInfo() map[string]any {
	return map[string]any{
		"name":    s.name,
		"version": s.version,
	}
}

// Capabilities returns server capabilities for an MCP initialize response.
func (s *Server) Capabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{},
	}
}

// ListTools returns metadata for every registered tool.
func (s *Server) ListTools() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0, len(s.tools))

	for _, t := range s.tools {
		entry := map[string]any{
			"name":        t.tool.Name,
			"description": t.tool.Description,
		}

		if t.tool.InputSchema != nil {
			if schema, ok := remarshal(t.tool.InputSchema); ok {
				entry["inputSchema"] = schema
			}
		}

		result = append(result, entry)
	}

	return result
}

// CallTool executes a tool by name. Failures are encoded in the result
// rather than returned, so a broken tool call never tears down the caller.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()

	if !ok {
		return errorResultMap("Tool not found: " + name), nil
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return errorResultMap("Failed to marshal input: " + err.Error()), nil
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		return errorResultMap("Tool execution failed: " + err.Error()), nil
	}

	return resultToMap(result), nil
}

// handleControllers lists the registered controller names.
func (s *Server) handleControllers(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"controllers": s.registry.Names(),
	})
}

// handleEnvironment reports the target controller's environment snapshot.
func (s *Server) handleEnvironment(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, errResult := s.target(req)
	if errResult != nil {
		return errResult, nil
	}

	env := snap.Environment()

	payload := map[string]any{}

	if env.Root != nil {
		payload["root"] = *env.Root
	}

	if env.Component != nil {
		payload["component"] = map[string]any{
			"document": env.Component.Document,
			"language": env.Component.Language,
		}
	}

	extensions := make([]map[string]any, 0, len(env.Extensions))

	for _, ext := range env.Extensions {
		entry := map[string]any{
			"id":      ext.ID,
			"enabled": ext.Enabled,
		}

		switch {
		case ext.Manifest != nil && ext.Manifest.Platform != nil:
			entry["platform"] = ext.Manifest.Platform.Kind()
		case ext.ManifestErr != nil:
			entry["manifestError"] = ext.ManifestErr.Error()
		}

		extensions = append(extensions, entry)
	}

	payload["extensions"] = extensions

	return jsonResult(payload)
}

// handleConnections reports the target controller's connection states.
func (s *Server) handleConnections(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, errResult := s.target(req)
	if errResult != nil {
		return errResult, nil
	}

	states := snap.States()

	connections := make(map[string]string, len(states))
	for id, state := range states {
		connections[id] = state.String()
	}

	return jsonResult(map[string]any{
		"connections": connections,
	})
}

// target resolves the "controller" argument to a registered snapshot. On
// failure it returns an error result for the caller to pass through.
func (s *Server) target(req *mcp.CallToolRequest) (Snapshot, *mcp.CallToolResult) {
	args, err := parseArguments(req)
	if err != nil {
		return nil, errorResult("Bad arguments: " + err.Error())
	}

	name, _ := args["controller"].(string)
	if name == "" {
		return nil, errorResult("Missing required argument: controller")
	}

	snap, ok := s.registry.Lookup(name)
	if !ok {
		return nil, errorResult("Controller not registered: " + name)
	}

	return snap, nil
}

// parseArguments unmarshals a tool request's arguments into a map.
func parseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, err
	}

	return args, nil
}

// jsonResult encodes payload as indented JSON text content.
func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: " + err.Error()), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// errorResult builds a CallToolResult carrying an error message.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// errorResultMap builds the map form of an error result directly.
func errorResultMap(message string) map[string]any {
	return map[string]any{
		"content":  []map[string]any{{"type": "text", "text": message}},
		"is_error": true,
	}
}

// resultToMap flattens a CallToolResult for programmatic consumers.
func resultToMap(result *mcp.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{
			"content": []map[string]any{},
		}
	}

	content := make([]map[string]any, 0, len(result.Content))

	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{
				"type": "text",
				"text": v.Text,
			})
		default:
			// Content variants carry their type tag in their JSON form.
			if entry, ok := remarshal(c); ok {
				content = append(content, entry)
			}
		}
	}

	resultMap := map[string]any{
		"content": content,
	}

	if result.IsError {
		resultMap["is_error"] = true
	}

	return resultMap
}

// remarshal converts a value to map[string]any through its JSON encoding.
func remarshal(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}

	return m, true
}
