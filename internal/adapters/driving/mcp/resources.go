package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for library resources.
	uriScheme = "zotero://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing papers.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "papers",
		Name:        "papers",
		Description: "All indexed papers, newest first",
		MIMEType:    "application/json",
	}, s.handlePapersResource)

	// Template for a single paper's index record.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "papers/{key}",
		Name:        "paper",
		Description: "Index record of one paper by its storage key",
		MIMEType:    "application/json",
	}, s.handlePaperResource)
}

// handlePapersResource returns every indexed paper.
func (s *Server) handlePapersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	papers, err := s.ports.Library.Papers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	if papers == nil {
		papers = []domain.PaperSummary{}
	}
	return jsonResource(req.Params.URI, papers)
}

// handlePaperResource returns the index record of one paper.
func (s *Server) handlePaperResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract key from URI: zotero://papers/{key}
	key := extractPaperKey(req.Params.URI)
	if !domain.IsIdentityKey(key) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	papers, err := s.ports.Library.Papers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	for _, p := range papers {
		if p.Key == key {
			return jsonResource(req.Params.URI, p)
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractPaperKey extracts the key from a URI like zotero://papers/{key}.
func extractPaperKey(uri string) string {
	const prefix = uriScheme + "papers/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
