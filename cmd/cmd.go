// Package cmd provides CLI command implementations for Verigraph.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/verigraph/verigraph/internal/claims"
	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/ingestion"
	"github.com/verigraph/verigraph/internal/spreading"
	"github.com/verigraph/verigraph/internal/store"
	"github.com/verigraph/verigraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// dataDirName is the per-directory store location.
const dataDirName = ".verigraph"

// ImportCmd loads a dataset into the knowledge store.
type ImportCmd struct {
	Dataset      string `arg:"" help:"Path to dataset JSON file"`
	Backend      string `help:"Storage backend" enum:"badger,sqlite" default:"badger"`
	NoEmbeddings bool   `help:"Skip vector embedding generation"`
	Watch        bool   `short:"w" help:"Keep watching the dataset and re-import on change"`
}

// Run executes the import command.
func (c *ImportCmd) Run() error {
	ctx := context.Background()
	datasetPath, err := filepath.Abs(c.Dataset)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	if _, err := os.Stat(datasetPath); err != nil {
		return fmt.Errorf("accessing %s: %w", datasetPath, err)
	}

	color.Green("Importing %s", datasetPath)

	dataDir, err := ensureDataDir()
	if err != nil {
		return err
	}

	backend, err := openBackend(c.Backend, dataDir, false)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	progress := func(phase string, pct float64) {
		fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	result, err := ingestion.RunPipeline(ctx, datasetPath, backend, !c.NoEmbeddings, progress)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	fmt.Println() // Newline after progress

	if err := writeMeta(dataDir, c.Backend, datasetPath, result); err != nil {
		return err
	}

	color.Green("\n✓ Import complete")
	fmt.Printf("  Entities:    %d\n", result.Entities)
	fmt.Printf("  Links:       %d\n", result.Links)
	fmt.Printf("  Anchors:     %d\n", result.Anchors)
	fmt.Printf("  Embeddings:  %d\n", result.Embeddings)
	fmt.Printf("  Duration:    %.2fs\n", result.DurationSecs)

	if !c.Watch {
		return nil
	}

	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)\n", datasetPath)
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	err = ingestion.WatchDataset(watchCtx, datasetPath, backend, !c.NoEmbeddings, func(result *ingestion.PipelineResult, err error) {
		if err != nil {
			color.Red("Re-import failed: %v", err)
			return
		}
		color.Green("✓ Re-imported %d entities, %d links", result.Entities, result.Links)
		if err := writeMeta(dataDir, c.Backend, datasetPath, result); err != nil {
			color.Red("Updating meta.json: %v", err)
		}
	})
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}

// VerifyCmd verifies factual claims against the knowledge graph.
type VerifyCmd struct {
	Claims []string `arg:"" optional:"" help:"Claims to verify"`
	Batch  string   `help:"File with one claim per line"`
	JSON   bool     `help:"Emit results as JSON"`
}

// Run executes the verify command.
func (c *VerifyCmd) Run() error {
	ctx := context.Background()

	toVerify := c.Claims
	if c.Batch != "" {
		content, err := os.ReadFile(c.Batch)
		if err != nil {
			return fmt.Errorf("reading batch file: %w", err)
		}
		for _, line := range strings.Split(string(content), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				toVerify = append(toVerify, line)
			}
		}
	}
	if len(toVerify) == 0 {
		return fmt.Errorf("no claims given. Pass claims as arguments or use --batch")
	}

	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	verifier := claims.NewVerifier(backend)
	results, err := verifier.VerifyBatch(ctx, toVerify)
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}

	if c.JSON {
		out := make([]map[string]any, len(results))
		for i, r := range results {
			out[i] = map[string]any{
				"claim":      r.Claim,
				"type":       r.Type,
				"status":     r.EffectiveStatus(),
				"confidence": r.Confidence,
				"correction": r.Correction,
			}
		}
		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	for _, r := range results {
		printResult(r)
	}
	return nil
}

func printResult(r *claims.Result) {
	switch r.EffectiveStatus() {
	case claims.StatusSupported:
		color.Green("✓ %s", r.Claim)
	case claims.StatusContradicted:
		color.Red("✗ %s", r.Claim)
	case claims.StatusPlausible:
		color.Yellow("~ %s", r.Claim)
	default:
		fmt.Printf("? %s\n", r.Claim)
	}
	fmt.Printf("  Status: %s  Confidence: %.2f  Type: %s\n", r.EffectiveStatus(), r.Confidence, r.Type)
	for _, ev := range r.Supporting {
		fmt.Printf("  + %s\n", ev)
	}
	for _, ev := range r.Contradicting {
		fmt.Printf("  - %s\n", ev)
	}
	if r.Correction != "" {
		fmt.Printf("  Correction: %s\n", r.Correction)
	}
	fmt.Println()
}

// LookupCmd shows the full profile of an entity.
type LookupCmd struct {
	Entity string `arg:"" help:"Entity name or ID"`
}

// Run executes the lookup command.
func (c *LookupCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	profile, err := resolveEntity(ctx, backend, c.Entity)
	if err != nil {
		return err
	}
	if profile == nil {
		fmt.Printf("Entity '%s' not found in the knowledge graph.\n", c.Entity)
		return nil
	}

	color.Cyan("%s (%s)", profile.Entity.Label, profile.Entity.ID)
	if profile.Entity.Description != "" {
		fmt.Println(profile.Entity.Description)
	}
	if profile.Entity.VitalLevel > 0 {
		fmt.Printf("Vital level: %d\n", profile.Entity.VitalLevel)
	}
	if profile.Entity.PageRank > 0 {
		fmt.Printf("PageRank: %.4f\n", profile.Entity.PageRank)
	}

	if len(profile.Positions) > 0 {
		fmt.Println("\nDimension positions:")
		for _, dim := range entity.Dimensions {
			pos := profile.Position(dim)
			if pos == nil {
				continue
			}
			fmt.Printf("  %-10s %s (depth %d)\n", dim, strings.Join(pos.Path, " > "), pos.Depth)
		}
	}

	if profile.EPA.Confidence > 0 {
		fmt.Printf("\nEPA: evaluation %+d, potency %+d, activity %+d (confidence %.2f)\n",
			profile.EPA.Evaluation, profile.EPA.Potency, profile.EPA.Activity, profile.EPA.Confidence)
	}

	if len(profile.Properties) > 0 {
		fmt.Println("\nProperties:")
		for _, key := range profile.SortedPropertyKeys() {
			fmt.Printf("  %s: %s\n", key, profile.Properties[key])
		}
	}

	anchors, err := backend.GetAnchors(ctx, profile.Entity.ID)
	if err != nil {
		return err
	}
	if len(anchors) > 0 {
		fmt.Println("\nAnchors:")
		for _, a := range anchors {
			fmt.Printf("  %s (%s, weight %.2f)\n", a.Anchor.Label, a.Anchor.Category, a.Weight)
		}
	}

	return nil
}

// SearchCmd searches entities by text.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
	Vital int    `help:"Restrict to entities at or above this vital level"`
	Exact bool   `help:"Exact label match only"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	var profiles []*entity.Profile
	if c.Exact {
		profiles, err = backend.SearchExact(ctx, c.Query, c.Limit)
	} else {
		profiles, err = backend.Search(ctx, c.Query, c.Limit, c.Vital)
	}
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(profiles) == 0 {
		// Fall back to hybrid search over labels and descriptions.
		hits, err := backend.HybridSearch(ctx, c.Query, nil, c.Limit)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		if len(hits) == 0 {
			fmt.Println("No results found")
			return nil
		}
		for i, hit := range hits {
			fmt.Printf("%d. %s (%s) score %.4f\n", i+1, hit.Label, hit.EntityID, hit.Score)
			if hit.Description != "" {
				fmt.Printf("   %s\n", hit.Description)
			}
		}
		return nil
	}

	for i, p := range profiles {
		fmt.Printf("%d. %s (%s)\n", i+1, p.Entity.Label, p.Entity.ID)
		if p.Entity.Description != "" {
			fmt.Printf("   %s\n", p.Entity.Description)
		}
	}
	return nil
}

// RelatedCmd lists entities linked to a given one.
type RelatedCmd struct {
	Entity    string `arg:"" help:"Entity name or ID"`
	Relation  string `help:"Restrict to one relation label"`
	Direction string `help:"Link direction" enum:"outgoing,incoming,both" default:"both"`
	Limit     int    `short:"n" default:"25" help:"Maximum results"`
}

// Run executes the related command.
func (c *RelatedCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	profile, err := resolveEntity(ctx, backend, c.Entity)
	if err != nil {
		return err
	}
	if profile == nil {
		fmt.Printf("Entity '%s' not found in the knowledge graph.\n", c.Entity)
		return nil
	}

	related, err := backend.GetRelated(ctx, profile.Entity.ID, c.Relation, store.Direction(c.Direction), c.Limit)
	if err != nil {
		return fmt.Errorf("loading relations: %w", err)
	}
	if len(related) == 0 {
		fmt.Printf("No related entities found for %s.\n", profile.Entity.Label)
		return nil
	}

	color.Cyan("Entities related to %s (%d)", profile.Entity.Label, len(related))
	for _, rel := range related {
		fmt.Printf("  --[%s]--> %s (%s), weight %.2f\n",
			rel.Relation, rel.Profile.Entity.Label, rel.Profile.Entity.ID, rel.Weight)
	}
	return nil
}

// SpreadCmd runs spreading activation from one or more entities.
type SpreadCmd struct {
	Entities  []string `arg:"" help:"Entity names or IDs to spread from"`
	Threshold float64  `help:"Minimum activation to keep" default:"0.15"`
	Depth     int      `help:"Maximum traversal depth" default:"2"`
	Limit     int      `short:"n" default:"50" help:"Maximum results"`
	NoAnchors bool     `help:"Disable the anchor layer"`
}

// Run executes the spread command.
func (c *SpreadCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	config := spreading.DefaultConfig()
	config.Threshold = c.Threshold
	config.MaxDepth = c.Depth
	config.MaxResults = c.Limit
	config.UseAnchors = !c.NoAnchors
	engine := spreading.New(backend, config)

	sources := make(map[string]float64, len(c.Entities))
	for _, ref := range c.Entities {
		profile, err := resolveEntity(ctx, backend, ref)
		if err != nil {
			return err
		}
		if profile == nil {
			fmt.Printf("Entity '%s' not found in the knowledge graph.\n", ref)
			return nil
		}
		sources[profile.Entity.ID] = 1.0
	}

	results, err := engine.SpreadMultiple(ctx, sources)
	if err != nil {
		return fmt.Errorf("spreading: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No activation spread beyond the sources.")
		return nil
	}

	banks := map[spreading.SemanticBank]float64{}
	for _, r := range results {
		fmt.Printf("%.3f  %s (%s)\n", r.Activation, r.Profile.Entity.Label, r.Profile.Entity.ID)
		fmt.Printf("       path %s via %s\n", strings.Join(r.Path, " -> "), strings.Join(r.Relations, ", "))
		for bank, v := range r.BankActivations {
			banks[bank] += v
		}
	}

	fmt.Println("\nSemantic banks:")
	for _, bank := range spreading.Banks {
		fmt.Printf("  %-13s %.3f\n", bank, banks[bank])
	}
	return nil
}

// GroundCmd resolves mentions to entities, using context terms for
// disambiguation.
type GroundCmd struct {
	Mentions []string `arg:"" help:"Mentions to resolve"`
	Context  []string `help:"Context terms guiding disambiguation"`
}

// Run executes the ground command.
func (c *GroundCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	grounder := claims.NewContextGrounder(backend)
	resolutions, err := grounder.GroundWithContext(ctx, c.Mentions, c.Context)
	if err != nil {
		return fmt.Errorf("grounding: %w", err)
	}

	for _, mention := range c.Mentions {
		res := resolutions[mention]
		if res == nil || res.BestMatch == nil {
			fmt.Printf("? %s: no match\n", mention)
			continue
		}
		fmt.Printf("%s -> %s (%s), confidence %.2f\n",
			mention, res.BestMatch.Entity.Label, res.BestMatch.Entity.ID, res.Confidence)
		if len(res.Candidates) > 1 {
			for _, cand := range res.Candidates {
				fmt.Printf("    %.3f  %s (%s)\n", cand.Score, cand.Profile.Entity.Label, cand.Profile.Entity.ID)
			}
		}
	}
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	backend, err := loadBackend()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	server := mcp.NewServer(backend)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server with optional dataset watching.
type ServeCmd struct {
	Watch bool `short:"w" help:"Re-import the dataset when it changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()

	// Watch mode re-imports, so the store must be writable.
	meta, err := readMeta()
	if err != nil {
		return err
	}
	backend, err := openBackend(meta.Backend, filepath.Join(mustGetwd(), dataDirName), !c.Watch)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	server := mcp.NewServer(backend)

	if c.Watch {
		if meta.Dataset == "" {
			return fmt.Errorf("no dataset recorded in meta.json; re-run 'verigraph import'")
		}
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := ingestion.WatchDataset(watchCtx, meta.Dataset, backend, true, func(result *ingestion.PipelineResult, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "Re-import failed: %v\n", err)
				}
			})
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
		fmt.Fprintln(os.Stderr, "Dataset watching enabled")
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	FilePath string `help:"Custom file path for configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	config := map[string]any{
		"mcpServers": map[string]any{
			"verigraph": map[string]any{
				"command": "verigraph",
				"args":    []string{"serve"},
			},
		},
	}

	// No client flag: print the config for manual installation.
	if !c.Claude && !c.Cursor {
		encoded, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	if !c.Local && !c.Global {
		c.Local = true
	}

	clients := map[string]string{}
	if c.Claude {
		clients["claude"] = ".claude"
	}
	if c.Cursor {
		clients["cursor"] = ".cursor"
	}

	for client, dir := range clients {
		if c.Global {
			home, err := os.UserHomeDir()
			if err != nil {
				home = os.Getenv("HOME")
			}
			path := filepath.Join(home, dir, "mcp.json")
			if err := writeConfig(path, config); err != nil {
				return err
			}
			color.Green("✓ Created global %s MCP config at %s", client, path)
		}
		if c.Local {
			path := filepath.Join(".", dir, "mcp.json")
			if c.FilePath != "" {
				path = filepath.Join(c.FilePath, "mcp.json")
			}
			if err := writeConfig(path, config); err != nil {
				return err
			}
			color.Green("✓ Created local %s MCP config at %s", client, path)
		}
	}

	return nil
}

func writeConfig(configPath string, config map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	content = append(content, '\n')
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// StatusCmd shows store status for the current directory.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	meta, err := readMeta()
	if err != nil {
		return err
	}

	fmt.Printf("Store status for %s\n", mustGetwd())
	fmt.Printf("  Version:     %s\n", meta.Version)
	fmt.Printf("  Backend:     %s\n", meta.Backend)
	fmt.Printf("  Dataset:     %s\n", meta.Dataset)
	fmt.Printf("  Imported:    %s\n", meta.ImportedAt)
	if meta.Stats != nil {
		fmt.Printf("  Entities:    %d\n", meta.Stats.Entities)
		fmt.Printf("  Links:       %d\n", meta.Stats.Links)
		fmt.Printf("  Anchors:     %d\n", meta.Stats.Anchors)
		fmt.Printf("  Embeddings:  %d\n", meta.Stats.Embeddings)
	}

	backend, err := loadBackend()
	if err != nil {
		return nil // meta exists but store is gone; status above is still useful
	}
	defer func() { _ = backend.Close() }()
	fmt.Printf("  Store:       %d entities, %d links\n", backend.EntityCount(), backend.LinkCount())

	return nil
}

// CleanCmd deletes the store for the current directory.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	dataDir := filepath.Join(mustGetwd(), dataDirName)
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return fmt.Errorf("no store found at %s. Nothing to clean", dataDir)
	}

	if !c.Force {
		fmt.Printf("Delete store at %s? [y/N] ", dataDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("deleting store: %w", err)
	}

	color.Green("Deleted %s", dataDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func ensureDataDir() (string, error) {
	dataDir := filepath.Join(mustGetwd(), dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", dataDirName, err)
	}
	return dataDir, nil
}

// openBackend creates and initializes the named backend rooted at dataDir.
func openBackend(name, dataDir string, readOnly bool) (store.Backend, error) {
	var backend store.Backend
	var path string
	switch name {
	case "badger":
		backend = store.NewBadgerBackend()
		path = filepath.Join(dataDir, "badger")
	case "sqlite":
		backend = store.NewSQLiteBackend()
		path = filepath.Join(dataDir, "graph.db")
	case "memory":
		backend = store.NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown backend: %s", name)
	}

	if err := backend.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", name, err)
	}
	return backend, nil
}

// loadBackend opens the store recorded in meta.json read-only.
func loadBackend() (store.Backend, error) {
	meta, err := readMeta()
	if err != nil {
		return nil, err
	}
	return openBackend(meta.Backend, filepath.Join(mustGetwd(), dataDirName), true)
}

// resolveEntity finds a profile by raw ID first, then by grounding the text.
func resolveEntity(ctx context.Context, backend store.Backend, ref string) (*entity.Profile, error) {
	profile, err := backend.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	return claims.NewGrounder(backend).Ground(ctx, ref)
}

// storeMeta is the meta.json document written after an import.
type storeMeta struct {
	Version    string                    `json:"version"`
	Backend    string                    `json:"backend"`
	Dataset    string                    `json:"dataset"`
	ImportedAt string                    `json:"imported_at"`
	Stats      *ingestion.PipelineResult `json:"stats"`
}

func writeMeta(dataDir, backendName, datasetPath string, result *ingestion.PipelineResult) error {
	meta := storeMeta{
		Version:    Version,
		Backend:    backendName,
		Dataset:    datasetPath,
		ImportedAt: time.Now().UTC().Format(time.RFC3339),
		Stats:      result,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta.json: %w", err)
	}
	metaPath := filepath.Join(dataDir, "meta.json")
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

func readMeta() (*storeMeta, error) {
	metaPath := filepath.Join(mustGetwd(), dataDirName, "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no store found at %s. Run 'verigraph import' first", mustGetwd())
		}
		return nil, fmt.Errorf("reading meta.json: %w", err)
	}

	var meta storeMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta.json: %w", err)
	}
	if meta.Backend == "" {
		meta.Backend = "badger"
	}
	return &meta, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Import  ImportCmd  `cmd:"" help:"Load a dataset into the knowledge store"`
	Verify  VerifyCmd  `cmd:"" help:"Verify factual claims against the knowledge graph"`
	Lookup  LookupCmd  `cmd:"" help:"Show the full profile of an entity"`
	Search  SearchCmd  `cmd:"" help:"Search entities by text"`
	Related RelatedCmd `cmd:"" help:"List entities linked to a given one"`
	Spread  SpreadCmd  `cmd:"" help:"Run spreading activation from an entity"`
	Ground  GroundCmd  `cmd:"" help:"Resolve mentions to entities with context"`
	Setup   SetupCmd   `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server with optional dataset watching"`
	Status  StatusCmd  `cmd:"" help:"Show store status for the current directory"`
	Clean   CleanCmd   `cmd:"" help:"Delete the store for the current directory"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("verigraph"),
		kong.Description("Claim verification engine over a multi-dimensional knowledge graph"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}
