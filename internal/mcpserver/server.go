// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes grove's built content to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/grove/internal/apperr"
	"github.com/starford/grove/internal/content"
	"github.com/starford/grove/internal/contentservice"
	"github.com/starford/grove/internal/models"
)

// ContractURI is the resource URI of the content format contract.
const ContractURI = "grove://content-format"

// Server wraps the MCP server with grove tools.
type Server struct {
	mcp *server.MCPServer
	svc *contentservice.Service
}

// New creates a new MCP server with all grove tools registered.
func New(svc *contentservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"grove",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_notes_tree",
		mcp.WithDescription("Return the notes collection as an indented outline of identifier and title, "+
			"children nested under their parent note."),
	), s.getNotesTree)

	s.mcp.AddTool(mcp.NewTool("list_collection",
		mcp.WithDescription("List the items of a collection of the latest build as JSON."),
		mcp.WithString("name", mcp.Required(),
			mcp.Enum(content.CollectionPosts, content.CollectionNotes, content.CollectionPages),
			mcp.Description("Collection name")),
	), s.listCollection)

	s.mcp.AddTool(mcp.NewTool("read_item",
		mcp.WithDescription("Read one item with its metadata, Markdown body and ancestor chain."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Item identifier: the file slug, case-insensitive")),
	), s.readItem)

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Full-text search through titles, bodies and tags of built content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("audit_content",
		mcp.WithDescription("Editorial status of all writing: scheduled posts, drafts by status and "+
			"items missing a title."),
		mcp.WithString("format", mcp.Enum("json", "html"), mcp.Description("Output format (default json)")),
	), s.auditContent)

	s.mcp.AddTool(mcp.NewTool("rebuild",
		mcp.WithDescription("Reload content from disk and rebuild collections, the site and the search index."),
	), s.rebuild)

	s.mcp.AddTool(mcp.NewTool("get_content_contract",
		mcp.WithDescription("Returns the grove content format contract. "+
			"Read it before drafting new posts or notes."),
	), s.getContentContract)

	// Resource: content format contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Content Format Contract",
			mcp.WithResourceDescription("Frontmatter and visibility rules that every content file follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getNotesTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots, err := s.svc.Collection(ctx, content.CollectionNotes)
	if err != nil {
		return toolError(err), nil
	}
	if len(roots) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	var b strings.Builder
	writeOutline(&b, roots, 0)
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func writeOutline(b *strings.Builder, items []*models.ContentItem, depth int) {
	for _, it := range items {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(it.Identifier)
		if it.Title != "" {
			b.WriteString(": ")
			b.WriteString(it.Title)
		}
		b.WriteString("\n")
		writeOutline(b, it.Children, depth+1)
	}
}

func (s *Server) listCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.Collection(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(items)
}

func (s *Server) readItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Item(ctx, identifier)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(item)
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) auditContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetString("format", "json") == "html" {
		html, err := s.svc.AuditHTML(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(html), nil
	}
	report, err := s.svc.Audit(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

func (s *Server) rebuild(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := s.svc.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b.Summary)
}

func (s *Server) getContentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     ContentFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns service errors into tool-level errors the client can read.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, contentservice.ErrNotBuilt):
		return mcp.NewToolResultError(err.Error() + "; call the rebuild tool first")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
