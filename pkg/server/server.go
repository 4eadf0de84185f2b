package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/richard-senior/podds/internal/logger"
	"github.com/richard-senior/podds/pkg/protocol"
	"github.com/richard-senior/podds/pkg/tools"
	"github.com/richard-senior/podds/pkg/transport"
)

const (
	serverName    = "podds"
	serverVersion = "1.0.0"
	// some clients namespace tool names with this
	toolPrefix = "mcp___"
)

// Server represents an MCP server
type Server struct {
	transport transport.Transport
	handlers  map[string]HandlerFunc
	tools     []protocol.Tool
	mu        sync.Mutex
}

// HandlerFunc is a function that handles an MCP request
type HandlerFunc func(params any) (any, error)

// NewServer creates a server reading from t with the protocol methods
// registered and no tools
func NewServer(t transport.Transport) *Server {
	s := &Server{
		transport: t,
		handlers:  make(map[string]HandlerFunc),
	}
	s.handlers[string(protocol.MethodInitialize)] = s.handleInitialize
	s.handlers[string(protocol.MethodPing)] = s.handlePing
	s.handlers[string(protocol.MethodToolsList)] = s.handleToolsList
	s.handlers[string(protocol.MethodToolsCall)] = s.handleToolsCall
	s.handlers[string(protocol.MethodResourcesList)] = s.handleEmptyList("resources")
	s.handlers[string(protocol.MethodPromptsList)] = s.handleEmptyList("prompts")
	return s
}

// RegisterTool registers a tool with the server
func (s *Server) RegisterTool(tool protocol.Tool, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = handler
	logger.Info("Registered tool:", tool.Name)
}

// RegisterModelTools registers the xG, scoreline and results page tools
func (s *Server) RegisterModelTools(mt *tools.ModelTools) {
	s.RegisterTool(tools.ShotXGTool(), mt.HandleShotXG)
	s.RegisterTool(tools.ScorelineMatrixTool(), mt.HandleScorelineMatrix)
	s.RegisterTool(tools.ListModelsTool(), mt.HandleListModels)
	s.RegisterTool(tools.ResultsPageTool(), tools.HandleResultsPage)
}

// GetTools returns the list of registered tools
func (s *Server) GetTools() []protocol.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Tool(nil), s.tools...)
}

// Start processes requests until the client disconnects or a signal arrives
func (s *Server) Start() error {
	logger.Info("Starting MCP server")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ProcessRequests()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("Received signal:", sig)
		return nil
	}
}

// ProcessRequests serves requests one at a time. A clean EOF returns nil.
func (s *Server) ProcessRequests() error {
	for {
		req, err := s.transport.ReadRequest()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var rpcErr *protocol.JsonRpcError
		if errors.As(err, &rpcErr) {
			if werr := s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, nil, nil)); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			// the stream cannot be resynchronised after a parse failure
			_ = s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrParse, err.Error(), nil, nil))
			return err
		}

		// nil means no response is required
		resp := s.handleRequest(req)
		if resp == nil {
			continue
		}
		if err := s.transport.WriteResponse(resp); err != nil {
			return err
		}
	}
}

// handleRequest processes a request and returns a response
func (s *Server) handleRequest(req *protocol.JsonRpcRequest) *protocol.JsonRpcResponse {
	logger.Info(">> ", req.Method)

	if strings.HasPrefix(req.Method, "notifications/") || req.IsNotification() {
		logger.Debug("Received notification:", req.Method)
		return nil
	}

	s.mu.Lock()
	handler := s.handlers[req.Method]
	s.mu.Unlock()
	if handler == nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound,
			fmt.Sprintf("Method not found: %s", req.Method), nil, req.ID)
	}

	result, err := handler(req.Params)
	if err != nil {
		var rpcErr *protocol.JsonRpcError
		if errors.As(err, &rpcErr) {
			return protocol.NewJsonRpcErrorResponse(rpcErr.Code, rpcErr.Message, rpcErr.Data, req.ID)
		}
		logger.Warn("Request failed", req.Method, err)
		return protocol.NewJsonRpcErrorResponse(protocol.ErrToolExecutionFailed, err.Error(), nil, req.ID)
	}

	resp, err := protocol.NewJsonRpcResponse(result, req.ID)
	if err != nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrInternal, "Failed to marshal result: "+err.Error(), nil, req.ID)
	}
	return resp
}

func (s *Server) handleInitialize(params any) (any, error) {
	version := protocol.ProtocolVersion
	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if raw, ok := params.(json.RawMessage); ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &init); err == nil && init.ProtocolVersion != "" {
			version = init.ProtocolVersion
		}
	}
	logger.Info("Handling initialize request with", len(s.GetTools()), "tools, protocol", version)

	return protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo: protocol.ServerInfo{Name: serverName, Version: serverVersion},
	}, nil
}

func (s *Server) handlePing(params any) (any, error) {
	return struct{}{}, nil
}

func (s *Server) handleToolsList(params any) (any, error) {
	return protocol.ToolsResponse{Tools: s.GetTools()}, nil
}

func (s *Server) handleEmptyList(key string) HandlerFunc {
	return func(params any) (any, error) {
		return map[string][]any{key: {}}, nil
	}
}

// handleToolsCall runs the named tool and wraps its output as JSON text
func (s *Server) handleToolsCall(params any) (any, error) {
	raw, ok := params.(json.RawMessage)
	if !ok || len(raw) == 0 {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "tools/call needs params"}
	}
	var call protocol.ToolCallParams
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "invalid tools/call parameters: " + err.Error()}
	}
	logger.Info("Tool call requested for:", call.Name)

	name := strings.TrimPrefix(call.Name, toolPrefix)
	s.mu.Lock()
	handler := s.handlers[name]
	s.mu.Unlock()
	if handler == nil || !s.isTool(name) {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "tool not found: " + call.Name}
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := handler(args)
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}

	text, err := json.MarshalIndent(result, "", " ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", name, err)
	}
	logger.Debug("Tool output", string(text))
	return protocol.ToolResult{Content: []protocol.Content{{Type: "text", Text: string(text)}}}, nil
}

func (s *Server) isTool(name string) bool {
	for _, t := range s.GetTools() {
		if t.Name == name {
			return true
		}
	}
	return false
}
