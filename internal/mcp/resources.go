package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/mcp/tools"
	"github.com/usestring/aptrace/internal/render"
)

// Resource URI scheme: aplog://
// Supported URIs:
//   aplog://summary
//   aplog://connection/{offset}

const summaryURI = "aplog://summary"

// registerResources registers resource templates and handlers.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&sdkmcp.Resource{
		URI:         summaryURI,
		Name:        "Capture Log Summary",
		Description: "Whole-log summary with every server endpoint. The aplog_summary tool returns the same data limited to the busiest endpoints.",
		MIMEType:    tools.MimeJSON,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.5,
		},
	}, s.handleResourceSummary)

	s.mcpServer.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: tools.ConnectionURIPrefix + "{offset}",
		Name:        "Connection Dump",
		Description: "Text dump of every packet of the connection holding offset. High context cost for long conversations - aplog_context and aplog_resolve_offset already return the bytes around an offset.",
		MIMEType:    tools.MimeText,
		Annotations: &sdkmcp.Annotations{
			Audience: []sdkmcp.Role{"assistant"},
			Priority: 0.6,
		},
	}, s.handleResourceConnection)
}

func (s *Server) handleResourceSummary(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	cat, err := s.deps.Catalog()
	if err != nil {
		return nil, tools.WrapLogError(err)
	}
	summary := cat.Summary(cat.Len())
	summary.Path = s.deps.Config.LogPath

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing resource: %w", err)
	}
	return textResource(req.Params.URI, tools.MimeJSON, string(data)), nil
}

func (s *Server) handleResourceConnection(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
	offset, err := parseConnectionURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if err := render.Render(s.deps.Log, offset, render.FormatStr, render.Options{}, &sb); err != nil {
		coded := tools.WrapLogError(err)
		if isNotFound(coded) {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, coded
	}
	return textResource(req.Params.URI, tools.MimeText, sb.String()), nil
}

// parseConnectionURI extracts the offset from an aplog://connection/ URI.
func parseConnectionURI(uri string) (int64, error) {
	rest, ok := strings.CutPrefix(uri, tools.ConnectionURIPrefix)
	if !ok {
		return 0, tools.ErrInvalidInput("invalid URI: expected " + tools.ConnectionURIPrefix + "{offset}")
	}
	offset, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || offset < 0 {
		return 0, tools.ErrInvalidInput(fmt.Sprintf("invalid connection offset %q", rest))
	}
	return offset, nil
}

func isNotFound(err error) bool {
	var coded *tools.CodedError
	return errors.As(err, &coded) && coded.Code == tools.ErrCodeNotFound
}

func textResource(uri, mime, text string) *sdkmcp.ReadResourceResult {
	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mime,
				Text:     text,
			},
		},
	}
}
