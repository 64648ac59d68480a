// Package mcp exposes an open mailbox session as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wesm/mboxbrowser/internal/session"
)

// Tool name constants.
const (
	ToolListMessages   = "list_messages"
	ToolGetMessage     = "get_message"
	ToolGetAttachment  = "get_attachment"
	ToolSearchMessages = "search_messages"
	ToolGetLabels      = "get_labels"
	ToolGetStats       = "get_stats"
)

// Mailbox is the read side of a session.
type Mailbox interface {
	Stats() (*session.MboxStats, error)
	GetEmails(offset, limit int) ([]session.EmailEntry, error)
	GetEmailBody(seq int) (*session.EmailBody, error)
	GetEmailsByLabel(label string) ([]session.EmailEntry, error)
	GetAttachment(seq, idx int) ([]byte, error)
	GetLabels() []session.LabelCount
	Search(ctx context.Context, query string, limit int) (*session.SearchResults, error)
}

func withLimit(defaultDesc string) mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default "+defaultDesc+")"),
	)
}

func withIndex() mcp.ToolOption {
	return mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Message index (0 is the newest message)"),
	)
}

// NewServer builds the MCP server with all tools registered.
func NewServer(box Mailbox, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mboxbrowser",
		version,
		server.WithToolCapabilities(false),
	)

	h := &handlers{box: box}

	s.AddTool(listMessagesTool(), h.listMessages)
	s.AddTool(getMessageTool(), h.getMessage)
	s.AddTool(getAttachmentTool(), h.getAttachment)
	s.AddTool(searchMessagesTool(), h.searchMessages)
	s.AddTool(getLabelsTool(), h.getLabels)
	s.AddTool(getStatsTool(), h.getStats)

	return s
}

// Serve serves the tools over stdio. It blocks until stdin is closed or the
// context is cancelled.
func Serve(ctx context.Context, box Mailbox, version string) error {
	stdio := server.NewStdioServer(NewServer(box, version))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func listMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolListMessages,
		mcp.WithDescription("List messages newest first. Returns index, date, sender, recipients, subject, labels and attachment flag."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("label",
			mcp.Description("Only messages carrying this label (case-insensitive)"),
		),
		withLimit("50"),
		mcp.WithNumber("offset",
			mcp.Description("Number of messages to skip for pagination (default 0)"),
		),
	)
}

func getMessageTool() mcp.Tool {
	return mcp.NewTool(ToolGetMessage,
		mcp.WithDescription("Get a message's metadata, text and HTML body, raw headers and attachment list by index."),
		mcp.WithReadOnlyHintAnnotation(true),
		withIndex(),
	)
}

func getAttachmentTool() mcp.Tool {
	return mcp.NewTool(ToolGetAttachment,
		mcp.WithDescription("Get attachment content as base64 with its metadata. Use get_message first to list a message's attachments."),
		mcp.WithReadOnlyHintAnnotation(true),
		withIndex(),
		mcp.WithNumber("attachment",
			mcp.Required(),
			mcp.Description("Position of the attachment in the message's attachment list"),
		),
	)
}

func searchMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMessages,
		mcp.WithDescription("Search messages using Gmail-like query syntax. Supports from:, to:, cc:, subject:, body:, label:, has:attachment, before:, after:, date:, older_than:, newer_than:, larger:, smaller: and free text."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (e.g. 'from:alice subject:meeting after:2024-01-01')"),
		),
		withLimit("50"),
	)
}

func getLabelsTool() mcp.Tool {
	return mcp.NewTool(ToolGetLabels,
		mcp.WithDescription("List labels with message counts, most used first."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getStatsTool() mcp.Tool {
	return mcp.NewTool(ToolGetStats,
		mcp.WithDescription("Get mailbox overview: file path, total messages, messages with attachments and label counts."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
