package rulegen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/metabug/rslgen/kit"
	"github.com/metabug/rslgen/rulegen/internal/annotate"
	"github.com/metabug/rslgen/rulegen/internal/query"
	"github.com/metabug/rslgen/rulegen/internal/score"
)

// RegisterMCP registers the rslgen tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerExtractAnnotations(srv)
	s.registerBuildCandidates(srv)
	s.registerScorePage(srv)
	s.registerValidateURLs(srv)
	s.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type recordArgs struct {
	Framework   string `json:"framework"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Examples    string `json:"examples"`
}

func (a recordArgs) record() Record {
	return Record{
		Framework:   a.Framework,
		Topic:       a.Topic,
		Description: a.Description,
		Examples:    a.Examples,
	}
}

var recordProperties = map[string]any{
	"framework":   map[string]any{"type": "string", "description": "Framework name"},
	"topic":       map[string]any{"type": "string", "description": "Inspection topic"},
	"description": map[string]any{"type": "string", "description": "Issue description"},
	"examples":    map[string]any{"type": "string", "description": "Code examples"},
}

func (s *Service) registerExtractAnnotations(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rslgen_extract_annotations",
		Description: "Extract @annotations and keywords from an inspection row",
		InputSchema: inputSchema(recordProperties, []string{"topic"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*recordArgs)
		return annotate.NewProfile(0, p.record()), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeRecordArgs)
}

func (s *Service) registerBuildCandidates(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rslgen_build_candidates",
		Description: "Build search-query candidates for an inspection row",
		InputSchema: inputSchema(recordProperties, []string{"topic"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*recordArgs)
		profile := annotate.NewProfile(0, p.record())
		return map[string]any{
			"candidates": query.Candidates(profile),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeRecordArgs)
}

func (s *Service) registerScorePage(srv *mcp.Server) {
	type req struct {
		recordArgs
		PageText  string `json:"page_text"`
		PageTitle string `json:"page_title"`
	}

	properties := map[string]any{
		"page_text":  map[string]any{"type": "string", "description": "Visible page text"},
		"page_title": map[string]any{"type": "string", "description": "Page title"},
	}
	for k, v := range recordProperties {
		properties[k] = v
	}

	tool := &mcp.Tool{
		Name:        "rslgen_score_page",
		Description: "Score a page's relevance against an inspection row",
		InputSchema: inputSchema(properties, []string{"topic", "page_text"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		profile := annotate.NewProfile(0, p.record())
		relevance, breakdown := score.Relevance(p.PageText, p.PageTitle, profile)
		return map[string]any{
			"score":     relevance,
			"breakdown": breakdown,
		}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerValidateURLs(srv *mcp.Server) {
	type req struct {
		recordArgs
		Text string `json:"text"`
	}

	properties := map[string]any{
		"text": map[string]any{"type": "string", "description": "Raw text containing URLs"},
	}
	for k, v := range recordProperties {
		properties[k] = v
	}

	tool := &mcp.Tool{
		Name:        "rslgen_validate_urls",
		Description: "Fetch, score, and rank the URLs found in a text block",
		InputSchema: inputSchema(properties, []string{"topic", "text"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		profile := annotate.NewProfile(0, p.record())
		formatted, report := s.pipeline.Validate(ctx, p.Text, profile)
		return map[string]any{
			"formatted": formatted,
			"report":    report,
		}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerStats(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rslgen_stats",
		Description: "Run statistics: row outcomes and URL check counts",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		if s.runlog == nil {
			return nil, fmt.Errorf("run log not configured")
		}
		return s.runlog.Stats(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func decodeRecordArgs(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p recordArgs
	if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}
