// Package mcp provides the MCP (Model Context Protocol) server for Verigraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/verigraph/verigraph/internal/claims"
	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/spreading"
	"github.com/verigraph/verigraph/internal/store"
)

// Backend defines the store access the MCP server needs.
type Backend interface {
	Get(ctx context.Context, id string) (*entity.Profile, error)
	Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error)
	SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error)
	GetRelated(ctx context.Context, id, relation string, dir store.Direction, limit int) ([]store.Related, error)
	GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error)
	GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]store.AnchorMember, error)
	HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]store.HybridSearchResult, error)
	EntityCount() int
	LinkCount() int
}

// Server represents the MCP server.
type Server struct {
	backend  Backend
	verifier *claims.Verifier
	grounder *claims.Grounder
	engine   *spreading.Engine
	server   *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over the given backend.
func NewServer(backend Backend) *Server {
	s := &Server{
		backend:  backend,
		verifier: claims.NewVerifier(backend),
		grounder: claims.NewGrounder(backend),
		engine:   spreading.NewDefault(backend),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "verigraph",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "verify_claim",
			Description: "Verify a natural-language factual claim against the knowledge graph. Returns a status (supported, contradicted, plausible, unverifiable), a confidence score, and a correction when the graph records a different fact.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"claim": {Type: "string", Description: "The claim to verify, e.g. 'The Eiffel Tower is in Paris'"},
				},
				Required: []string{"claim"},
			},
		},
		{
			Name:        "lookup_entity",
			Description: "Look up an entity by name or ID and return its full profile: dimension positions, EPA values, properties, and anchors.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity": {Type: "string", Description: "Entity name or ID (e.g. 'Paris' or 'Q90')"},
				},
				Required: []string{"entity"},
			},
		},
		{
			Name:        "search_entities",
			Description: "Search entities by text using hybrid search (full-text + vector with RRF fusion). Returns ranked matches.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search query text"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "related_entities",
			Description: "List entities linked to a given entity, optionally filtered by relation. Incoming links are reported as inverse_<relation>.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity":   {Type: "string", Description: "Entity name or ID"},
					"relation": {Type: "string", Description: "Restrict to one relation label"},
					"limit":    {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"entity"},
			},
		},
		{
			Name:        "spread_activation",
			Description: "Run spreading activation from an entity to find semantically related entities through graph links and shared anchors. Returns activations, paths, and semantic bank totals.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity": {Type: "string", Description: "Entity name or ID to spread from"},
				},
				Required: []string{"entity"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "verigraph://overview",
			Name:        "Knowledge Graph Overview",
			Description: "High-level statistics about the loaded knowledge graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "verigraph://schema",
			Name:        "Graph Schema",
			Description: "Description of the Verigraph knowledge graph schema",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "verify_claim":
		claim, _ := args["claim"].(string)
		return s.handleVerify(ctx, claim)
	case "lookup_entity":
		ref, _ := args["entity"].(string)
		return s.handleLookup(ctx, ref)
	case "search_entities":
		query, _ := args["query"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 20
		}
		return s.handleSearch(ctx, query, int(limit))
	case "related_entities":
		ref, _ := args["entity"].(string)
		relation, _ := args["relation"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 25
		}
		return s.handleRelated(ctx, ref, relation, int(limit))
	case "spread_activation":
		ref, _ := args["entity"].(string)
		return s.handleSpread(ctx, ref)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "verigraph://overview":
		return s.getOverview(), nil
	case "verigraph://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "verigraph",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleVerify(ctx context.Context, claim string) (string, error) {
	if claim == "" {
		return "No claim provided", nil
	}

	result, err := s.verifier.Verify(ctx, claim)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Claim Verification\n\n")
	sb.WriteString(fmt.Sprintf("Claim: %s\n", result.Claim))
	sb.WriteString(fmt.Sprintf("Type: %s\n", result.Type))
	sb.WriteString(fmt.Sprintf("Status: %s\n", result.EffectiveStatus()))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", result.Confidence))

	if result.Subject != nil {
		sb.WriteString(fmt.Sprintf("\nSubject: %s (%s)\n", result.Subject.Entity.Label, result.Subject.Entity.ID))
	}
	if result.Object != nil {
		sb.WriteString(fmt.Sprintf("Object: %s (%s)\n", result.Object.Entity.Label, result.Object.Entity.ID))
	}

	if len(result.Supporting) > 0 {
		sb.WriteString("\nSupporting evidence:\n")
		for _, ev := range result.Supporting {
			sb.WriteString(fmt.Sprintf("- %s\n", ev))
		}
	}
	if len(result.Contradicting) > 0 {
		sb.WriteString("\nContradicting evidence:\n")
		for _, ev := range result.Contradicting {
			sb.WriteString(fmt.Sprintf("- %s\n", ev))
		}
	}
	if result.Correction != "" {
		sb.WriteString(fmt.Sprintf("\nCorrection: %s\n", result.Correction))
	}

	return sb.String(), nil
}

// resolveEntity finds a profile for a name or raw entity ID.
func (s *Server) resolveEntity(ctx context.Context, ref string) (*entity.Profile, error) {
	profile, err := s.backend.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	return s.grounder.Ground(ctx, ref)
}

func (s *Server) handleLookup(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "No entity provided", nil
	}

	profile, err := s.resolveEntity(ctx, ref)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return fmt.Sprintf("Entity '%s' not found in the knowledge graph", ref), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s (%s)\n\n", profile.Entity.Label, profile.Entity.ID))
	if profile.Entity.Description != "" {
		sb.WriteString(profile.Entity.Description + "\n\n")
	}
	if profile.Entity.VitalLevel > 0 {
		sb.WriteString(fmt.Sprintf("Vital level: %d\n", profile.Entity.VitalLevel))
	}
	if profile.Entity.PageRank > 0 {
		sb.WriteString(fmt.Sprintf("PageRank: %.4f\n", profile.Entity.PageRank))
	}

	if len(profile.Positions) > 0 {
		sb.WriteString("\n### Dimension Positions\n\n")
		for _, dim := range entity.Dimensions {
			pos := profile.Position(dim)
			if pos == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %s (depth %d)\n", dim, strings.Join(pos.Path, " > "), pos.Depth))
		}
	}

	if len(profile.Properties) > 0 {
		sb.WriteString("\n### Properties\n\n")
		for _, key := range profile.SortedPropertyKeys() {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", key, profile.Properties[key]))
		}
	}

	anchors, err := s.backend.GetAnchors(ctx, profile.Entity.ID)
	if err == nil && len(anchors) > 0 {
		sb.WriteString("\n### Anchors\n\n")
		for _, a := range anchors {
			sb.WriteString(fmt.Sprintf("- %s (%s, weight %.2f)\n", a.Anchor.Label, a.Anchor.Category, a.Weight))
		}
	}

	return sb.String(), nil
}

func (s *Server) handleSearch(ctx context.Context, query string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	hits, err := s.backend.HybridSearch(ctx, query, nil, limit)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(hits), query))
	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, hit.Label, hit.EntityID))
		if hit.Description != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", hit.Description))
		}
		sb.WriteString(fmt.Sprintf("   Score: %.4f\n\n", hit.Score))
	}
	sb.WriteString("Next: Use `lookup_entity` on a result for the full profile.")

	return sb.String(), nil
}

func (s *Server) handleRelated(ctx context.Context, ref, relation string, limit int) (string, error) {
	if ref == "" {
		return "No entity provided", nil
	}

	profile, err := s.resolveEntity(ctx, ref)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return fmt.Sprintf("Entity '%s' not found in the knowledge graph", ref), nil
	}

	related, err := s.backend.GetRelated(ctx, profile.Entity.ID, relation, store.DirectionBoth, limit)
	if err != nil {
		return "", err
	}
	if len(related) == 0 {
		return fmt.Sprintf("No related entities found for %s", profile.Entity.Label), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Entities related to %s (%d)\n\n", profile.Entity.Label, len(related)))
	for _, rel := range related {
		sb.WriteString(fmt.Sprintf("- %s --[%s]--> %s (%s, weight %.2f)\n",
			profile.Entity.Label, rel.Relation, rel.Profile.Entity.Label, rel.Profile.Entity.ID, rel.Weight))
	}

	return sb.String(), nil
}

func (s *Server) handleSpread(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "No entity provided", nil
	}

	profile, err := s.resolveEntity(ctx, ref)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return fmt.Sprintf("Entity '%s' not found in the knowledge graph", ref), nil
	}

	results, err := s.engine.Spread(ctx, profile.Entity.ID, 1.0)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No activation spread from %s", profile.Entity.Label), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Spreading activation from %s (%d entities reached)\n\n", profile.Entity.Label, len(results)))
	banks := map[spreading.SemanticBank]float64{}
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- %s (%s): activation %.3f via %s\n",
			r.Profile.Entity.Label, r.Profile.Entity.ID, r.Activation, strings.Join(r.Relations, ", ")))
		for bank, v := range r.BankActivations {
			banks[bank] += v
		}
	}

	sb.WriteString("\n### Semantic Banks\n\n")
	for _, bank := range spreading.Banks {
		sb.WriteString(fmt.Sprintf("- %s: %.3f\n", bank, banks[bank]))
	}

	return sb.String(), nil
}

// Resource Handlers

func (s *Server) getOverview() string {
	var sb strings.Builder
	sb.WriteString("# Verigraph Knowledge Graph Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Entities:** %d\n", s.backend.EntityCount()))
	sb.WriteString(fmt.Sprintf("**Links:** %d\n", s.backend.LinkCount()))
	sb.WriteString("\n## Dimensions\n\n")
	sb.WriteString("- SPATIAL: Geographic containment from the zero state (Earth)\n")
	sb.WriteString("- TEMPORAL: Historical era placement\n")
	sb.WriteString("- TAXONOMIC: Type hierarchy (what kind of thing it is)\n")
	sb.WriteString("- SCALE: Physical or organizational scale\n")
	sb.WriteString("- DOMAIN: Field of knowledge or activity\n")
	sb.WriteString("\n## Anchor Categories\n\n")
	sb.WriteString("- SCOPE: Field or discipline membership\n")
	sb.WriteString("- HISTORY: Historical period or event association\n")
	sb.WriteString("- KNOWN_FOR: Notable achievements and associations\n")
	sb.WriteString("- GEOGRAPHY: Geographic region association\n")

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Verigraph Knowledge Graph Schema\n\n")
	sb.WriteString("## Entity\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `id` | Stable identifier (e.g. Q90) |\n")
	sb.WriteString("| `label` | Human-readable name |\n")
	sb.WriteString("| `description` | Short description |\n")
	sb.WriteString("| `vital_level` | Editorial importance (lower is more important, 0 = unranked) |\n")
	sb.WriteString("| `pagerank` | Link-graph importance score |\n")
	sb.WriteString("\n## Dimension Position\n\n")
	sb.WriteString("Each entity can hold a position on each of the five dimensions:\n")
	sb.WriteString("a sign, a depth, and a path of nodes from the dimension's zero state.\n")
	sb.WriteString("\n## Links\n\n")
	sb.WriteString("Directed, typed edges between entities with a weight in [0, 1].\n")
	sb.WriteString("Common relations: same_as, part_of, located_in, instance_of,\n")
	sb.WriteString("subclass_of, capital_of, created, invented, wrote, related_to.\n")
	sb.WriteString("Incoming edges are surfaced as `inverse_<relation>`.\n")
	sb.WriteString("\n## Anchors\n\n")
	sb.WriteString("Weighted many-to-many tags connecting entities that share a scope,\n")
	sb.WriteString("history, notable association, or geography. Spreading activation\n")
	sb.WriteString("crosses anchors as a second connectivity layer.\n")
	sb.WriteString("\n## EPA Values\n\n")
	sb.WriteString("Ternary evaluation / potency / activity ratings with a confidence score.\n")

	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
