// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver exposes notebook execution as MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/marcelocantos/codebook/internal/kernel"
	"github.com/marcelocantos/codebook/internal/notebook"
)

// Server wires the kernel to an MCP server.
type Server struct {
	kernel *kernel.Kernel
	logger *zap.Logger
	mcp    *server.MCPServer
	// Write saves outputs back to the notebook after each tool call.
	Write bool
}

// New returns a server with the list_cells, run_cell and run_all tools.
func New(k *kernel.Kernel, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		kernel: k,
		logger: logger,
		mcp: server.NewMCPServer("codebook", version,
			server.WithToolCapabilities(false),
			server.WithRecovery()),
	}

	s.mcp.AddTool(mcp.NewTool("list_cells",
		mcp.WithDescription("List the code cells of a markdown notebook, numbered from 1."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the markdown notebook")),
	), s.listCells)

	s.mcp.AddTool(mcp.NewTool("run_cell",
		mcp.WithDescription("Run one code cell, replaying the earlier cells of its language, and return its output."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the markdown notebook")),
		mcp.WithNumber("cell", mcp.Required(), mcp.Description("Cell number as shown by list_cells")),
	), s.runCell)

	s.mcp.AddTool(mcp.NewTool("run_all",
		mcp.WithDescription("Run every code cell in order and return each cell's output."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the markdown notebook")),
	), s.runAll)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve handles requests on in and out until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) listCells(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := notebook.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	for i, h := range doc.CodeHandles() {
		c := notebook.Capture(h, doc.Block(h))
		fmt.Fprintf(&b, "## cell %d (%s)", i+1, c.Language)
		for _, d := range c.Directives {
			fmt.Fprintf(&b, " :%s", d)
		}
		fmt.Fprintf(&b, "\n%s\n\n", strings.TrimRight(c.Source, "\n"))
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no code cells"), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) runCell(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := req.RequireInt("cell")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := notebook.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := doc.CodeCell(n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.kernel.ExecuteCell(ctx, doc, h, kernel.Discard)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.finish(doc, []*kernel.Result{res})
}

func (s *Server) runAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := notebook.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.kernel.ExecuteAll(ctx, doc, kernel.Discard)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.finish(doc, results)
}

func (s *Server) finish(doc *notebook.Document, results []*kernel.Result) (*mcp.CallToolResult, error) {
	failed := false
	for _, res := range results {
		if !res.OK() {
			failed = true
		}
		if b := doc.Block(res.Handle); b != nil && res.Status != kernel.Skipped && res.Inserted == 0 {
			b.Output = res.Output
		}
	}
	if s.Write {
		if err := notebook.WriteFile(doc); err != nil {
			s.logger.Warn("writing notebook", zap.String("path", doc.Path), zap.Error(err))
		}
	}

	text := Format(doc, results)
	if failed {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// Format renders results as markdown, one section per cell.
func Format(doc *notebook.Document, results []*kernel.Result) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "## cell %d (%s): %s\n", doc.CodeNumber(res.Handle), res.Language, res.Status)
		if res.Output != "" {
			fmt.Fprintf(&b, "```output\n%s\n```\n", strings.TrimRight(res.Output, "\n"))
		}
		if res.Stderr != "" {
			fmt.Fprintf(&b, "```stderr\n%s\n```\n", strings.TrimRight(res.Stderr, "\n"))
		}
		if res.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", res.Err)
		}
		if res.Inserted > 0 {
			fmt.Fprintf(&b, "inserted %d blocks after this cell\n", res.Inserted)
		}
	}
	return b.String()
}
