// Package mcp provides an MCP (Model Context Protocol) server exposing the
// knowledge base as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/utils"
)

type Config struct {
	// Knowledge serves the guides, claims and portals the tools read.
	Knowledge *knowledge.Repository

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the knowledge tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "infobase",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Knowledge == nil {
			return nil, errors.New("knowledge repository is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchGuidesToolName,
			Description: searchGuidesDescription,
		}, s.handleSearchGuides)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        getGuideToolName,
			Description: getGuideDescription,
		}, s.handleGetGuide)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listPortalsToolName,
			Description: listPortalsDescription,
		}, s.handleListPortals)
	}

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying MCP server, e.g. to connect it to an
// in-process transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
