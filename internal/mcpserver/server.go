// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Jotter notebook to LLM clients via stdio transport.
//
// MCP has no cookies, so every protected tool takes the session_id returned
// by register or login as an explicit argument.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotter/internal/gateway"
)

// Server wraps the MCP server with Jotter tools.
type Server struct {
	mcp *server.MCPServer
	gw  *gateway.Gateway
}

// New creates a new MCP server with all Jotter tools registered.
func New(gw *gateway.Gateway, version string) *Server {
	s := &Server{gw: gw}

	s.mcp = server.NewMCPServer(
		"Jotter",
		version,
		server.WithToolCapabilities(false),
	)

	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by register or login"))
	indexArg := mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based position of the note in the current list"))

	s.mcp.AddTool(mcp.NewTool("register",
		mcp.WithDescription("Create an account and open a session. Returns the session id and user."),
		mcp.WithString("username", mcp.Required()),
		mcp.WithString("password", mcp.Required()),
	), s.register)

	s.mcp.AddTool(mcp.NewTool("login",
		mcp.WithDescription("Open a new session for an existing account."),
		mcp.WithString("username", mcp.Required()),
		mcp.WithString("password", mcp.Required()),
	), s.login)

	s.mcp.AddTool(mcp.NewTool("logout",
		mcp.WithDescription("Close a session. Closing an unknown session succeeds."),
		sessionArg,
	), s.logout)

	s.mcp.AddTool(mcp.NewTool("me",
		mcp.WithDescription("Return the user behind a session."),
		sessionArg,
	), s.me)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the caller's notes in insertion order with their current index."),
		sessionArg,
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Append a note. A note with neither title nor content is ignored."),
		sessionArg,
		mcp.WithString("title", mcp.Description("Note title; defaults to \"Untitled\"")),
		mcp.WithString("content", mcp.Description("Note body")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read the note at an index."),
		sessionArg,
		indexArg,
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("edit_note",
		mcp.WithDescription("Replace the note at an index. Indexes shift after deletes; re-list before editing."),
		sessionArg,
		indexArg,
		mcp.WithString("title"),
		mcp.WithString("content"),
	), s.editNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete the note at an index. Later notes move down by one."),
		sessionArg,
		indexArg,
	), s.deleteNote)

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

type authResult struct {
	SessionID string `json:"session_id"`
	User      any    `json:"user"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) register(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := req.RequireString("username")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	password, err := req.RequireString("password")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	auth, err := s.gw.Register(ctx, username, password)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(authResult{SessionID: auth.SessionID, User: auth.User})
}

func (s *Server) login(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := req.RequireString("username")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	password, err := req.RequireString("password")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	auth, err := s.gw.Login(ctx, username, password)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(authResult{SessionID: auth.SessionID, User: auth.User})
}

func (s *Server) logout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.gw.Logout(ctx, sid)
	return mcp.NewToolResultText("logged out"), nil
}

func (s *Server) me(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := s.gw.Me(ctx, sid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(u)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.gw.ListNotes(ctx, sid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes)
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, added, err := s.gw.AddNote(ctx, sid, req.GetString("title", ""), req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !added {
		return mcp.NewToolResultText("ignored: title and content are both empty"), nil
	}
	return jsonResult(note)
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := requireIndex(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, found, err := s.gw.GetNote(ctx, sid, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !found {
		return mcp.NewToolResultError("no note at that index"), nil
	}
	return jsonResult(note)
}

func (s *Server) editNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := requireIndex(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	edited, err := s.gw.EditNote(ctx, sid, index, req.GetString("title", ""), req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !edited {
		return mcp.NewToolResultText("no note at that index; nothing changed"), nil
	}
	return mcp.NewToolResultText("updated"), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := requireIndex(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := s.gw.DeleteNote(ctx, sid, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !deleted {
		return mcp.NewToolResultText("no note at that index; nothing changed"), nil
	}
	return mcp.NewToolResultText("deleted"), nil
}

// maxIndex bounds indexes to integers a float64 represents exactly.
const maxIndex = 1 << 53

// requireIndex reads the "index" argument and rejects values that are not
// whole numbers, which would otherwise truncate onto a different note.
func requireIndex(req mcp.CallToolRequest) (int, error) {
	f, err := req.RequireFloat("index")
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.Trunc(f) != f || math.Abs(f) > maxIndex {
		return 0, fmt.Errorf("index must be a whole number, got %v", f)
	}
	return int(f), nil
}
