// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the template catalog to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/templateservice"
)

const formatURI = "raido://template-format"

// Service is the subset of the template service the tools drive.
type Service interface {
	ReadIndex(ctx context.Context, actor templateservice.Actor, branch, locale string) (json.RawMessage, error)
	ReadTranslations(ctx context.Context, actor templateservice.Actor, branch string) (json.RawMessage, error)
	ListCommits(f journal.Filter) ([]journal.Entry, int, error)
	UpdateTemplate(ctx context.Context, actor templateservice.Actor, req templateservice.UpdateRequest) (*templateservice.Result, error)
}

var _ Service = (*templateservice.Service)(nil)

// actor is who MCP tool calls commit as: the server's own credential.
var actor = templateservice.Actor{Server: true, UserID: "mcp"}

// Server wraps the MCP server with the template tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_template_index",
		mcp.WithDescription("Read the template index of a branch, either the master index or a locale's translated copy."),
		mcp.WithString("branch", mcp.Description("Branch to read (default branch when omitted)")),
		mcp.WithString("locale", mcp.Description("Locale code, e.g. fr (master index when omitted)")),
	), s.readTemplateIndex)

	s.mcp.AddTool(mcp.NewTool("read_translation_memory",
		mcp.WithDescription("Read the translation memory document of a branch."),
		mcp.WithString("branch", mcp.Description("Branch to read (default branch when omitted)")),
	), s.readTranslationMemory)

	s.mcp.AddTool(mcp.NewTool("list_commits",
		mcp.WithDescription("List commits recorded by this server, newest first."),
		mcp.WithString("template", mcp.Description("Only commits touching this template")),
		mcp.WithString("branch", mcp.Description("Only commits on this branch")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	), s.listCommits)

	s.mcp.AddTool(mcp.NewTool("update_template_metadata",
		mcp.WithDescription("Update metadata fields of an existing template in one commit. "+
			"Locale indexes, the translation memory and bundles follow automatically. "+
			"Read the format via get_template_contract or the "+formatURI+" resource first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithString("metadata", mcp.Required(), mcp.Description(`JSON object of fields to change, e.g. {"title":"New title","tags":["Image"]}`)),
		mcp.WithString("branch", mcp.Description("Branch to commit to (default branch when omitted)")),
	), s.updateTemplateMetadata)

	s.mcp.AddTool(mcp.NewTool("get_template_contract",
		mcp.WithDescription("Returns the template index format contract."),
	), s.getTemplateContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Upload an input or output asset for an existing template from an http(s) URL or a base64 data URI. "+
			"The file is renamed to the template's asset naming and the workflow is rewritten to match."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name as referenced by the workflow, e.g. input.png")),
		mcp.WithString("kind", mcp.Description(`"input" (default) or "output"`)),
		mcp.WithString("branch", mcp.Description("Branch to commit to (default branch when omitted)")),
	), s.uploadAsset)

	s.mcp.AddResource(mcp.NewResource(
		formatURI,
		"Template Index Format",
		mcp.WithResourceDescription("Layout of the template index, locale indexes and asset naming"),
		mcp.WithMIMEType("text/markdown"),
	), s.readTemplateFormatResource)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying MCP server (for testing).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optional(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func (s *Server) readTemplateIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.ReadIndex(ctx, actor, optional(req, "branch"), optional(req, "locale"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) readTranslationMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.ReadTranslations(ctx, actor, optional(req, "branch"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) listCommits(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	if n, err := req.RequireFloat("limit"); err == nil && n > 0 {
		limit = int(n)
	}
	entries, total, err := s.svc.ListCommits(journal.Filter{
		Template: optional(req, "template"),
		Branch:   optional(req, "branch"),
		Limit:    limit,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no commits found"), nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s %s %s\n", e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), shortSHA(e.CommitSHA), e.Branch, e.Operation, e.Template)
	}
	if total > len(entries) {
		fmt.Fprintf(&b, "(%d of %d)\n", len(entries), total)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	if sha == "" {
		return "-------"
	}
	return sha
}

func (s *Server) updateTemplateMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("metadata")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	upd := templateservice.UpdateRequest{Branch: optional(req, "branch"), Name: name}
	if err := json.Unmarshal([]byte(raw), &upd.Metadata); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid metadata: %v", err)), nil
	}

	res, err := s.svc.UpdateTemplate(ctx, actor, upd)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultText(res), nil
}

func resultText(res *templateservice.Result) *mcp.CallToolResult {
	out, err := json.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getTemplateContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TemplateFormatContract), nil
}

func (s *Server) readTemplateFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     TemplateFormatContract,
		},
	}, nil
}
