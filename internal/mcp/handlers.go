package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wesm/mboxbrowser/internal/session"
)

const (
	maxLimit          = 1000
	maxAttachmentSize = 50 * 1024 * 1024 // 50MB
)

type handlers struct {
	box Mailbox
}

// getIndexArg extracts a required non-negative integer from the arguments map.
func getIndexArg(args map[string]any, key string) (int, error) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	if v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return int(v), nil
}

// limitArg extracts a non-negative integer limit from a map, with a default.
// JSON numbers arrive as float64. Values above maxLimit are clamped.
func limitArg(args map[string]any, key string, def int) int {
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) || v > float64(maxLimit) {
		return maxLimit
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handlers) listMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	limit := limitArg(args, "limit", 50)
	offset := limitArg(args, "offset", 0)

	label, _ := args["label"].(string)
	if label == "" {
		msgs, err := h.box.GetEmails(offset, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(msgs)
	}

	msgs, err := h.box.GetEmailsByLabel(label)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if offset >= len(msgs) {
		return jsonResult([]session.EmailEntry{})
	}
	return jsonResult(msgs[offset:min(len(msgs), offset+limit)])
}

// messageDetail pairs the index entry with the parsed body.
type messageDetail struct {
	session.EmailEntry
	Body *session.EmailBody `json:"body"`
}

func (h *handlers) getMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seq, err := getIndexArg(req.GetArguments(), "index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := h.box.GetEmailBody(seq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := h.box.GetEmails(seq, 1)
	if err != nil || len(entries) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("message %d not available", seq)), nil
	}

	return jsonResult(messageDetail{EmailEntry: entries[0], Body: body})
}

func (h *handlers) getAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	seq, err := getIndexArg(args, "index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idx, err := getIndexArg(args, "attachment")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := h.box.GetEmailBody(seq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if idx >= len(body.Attachments) {
		return mcp.NewToolResultError(fmt.Sprintf("message %d has %d attachments", seq, len(body.Attachments))), nil
	}
	meta := body.Attachments[idx]
	if meta.Size > maxAttachmentSize {
		return mcp.NewToolResultError(fmt.Sprintf("attachment too large: %d bytes (max %d)", meta.Size, maxAttachmentSize)), nil
	}

	data, err := h.box.GetAttachment(seq, idx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := struct {
		Filename      string `json:"filename"`
		ContentType   string `json:"content_type"`
		Size          int    `json:"size"`
		ContentBase64 string `json:"content_base64"`
	}{
		Filename:      meta.Filename,
		ContentType:   meta.ContentType,
		Size:          len(data),
		ContentBase64: base64.StdEncoding.EncodeToString(data),
	}
	return jsonResult(resp)
}

func (h *handlers) searchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	res, err := h.box.Search(ctx, query, limitArg(args, "limit", 50))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (h *handlers) getLabels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.box.GetLabels())
}

func (h *handlers) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.box.Stats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}
