// Command spec is the operator-facing CLI (§6.5): it inspects and
// validates a spec's artifact tree on the local filesystem (§6.4), and
// mediates that tree with the Entity Store for specs already running
// on an orchestratord.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/forgekit/autoforge/pkg/database"
	"github.com/forgekit/autoforge/pkg/specphase"
	"github.com/forgekit/autoforge/pkg/store"
)

type cli struct {
	Output string `help:"Local artifact output directory." default:"." type:"path"`

	Show     showCmd     `cmd:"" help:"List or inspect local artifacts."`
	Validate validateCmd `cmd:"" help:"Run §4.7 validation rules against the local artifact tree."`
	Sync     syncCmd     `cmd:"" help:"Mediate the local artifact tree with the Entity Store."`
}

func main() {
	var c cli
	parser := kong.Parse(&c,
		kong.Name("spec"),
		kong.Description("Operator CLI for the spec phase state machine."),
		kong.UsageOnError(),
	)
	err := parser.Run(&c)
	parser.FatalIfErrorf(err)
}

// loadArtifacts reads every markdown file under output's requirements/,
// design/, tasks/, and tickets/ subdirectories and parses it as a
// specphase.Artifact.
func loadArtifacts(output string) ([]specphase.Artifact, error) {
	var artifacts []specphase.Artifact
	for _, dir := range []string{"requirements", "design", "tasks", "tickets"} {
		entries, err := filepath.Glob(filepath.Join(output, dir, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		for _, path := range entries {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			a, err := specphase.ParseArtifact(string(raw))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			artifacts = append(artifacts, a)
		}
	}
	return artifacts, nil
}

type showCmd struct {
	Target string `arg:"" enum:"all,tickets,tasks,ready,graph" help:"What to show."`
	Remote bool   `help:"Read from the Entity Store instead of the local filesystem."`
	SpecID string `name:"spec-id" help:"Spec id, required with --remote."`
}

func (s *showCmd) Run(c *cli) error {
	if s.Remote {
		return s.runRemote(c)
	}

	artifacts, err := loadArtifacts(c.Output)
	if err != nil {
		return err
	}

	switch s.Target {
	case "all":
		for _, a := range artifacts {
			fmt.Printf("%-8s %-20s %s\n", a.Kind, a.Frontmatter.ID, a.Frontmatter.Status)
		}
	case "tickets":
		printKind(artifacts, specphase.ArtifactTicket)
	case "tasks":
		printKind(artifacts, specphase.ArtifactTask)
	case "ready":
		for _, a := range readyTasks(artifacts) {
			fmt.Println(a.Frontmatter.ID)
		}
	case "graph":
		printGraph(artifacts)
	}
	return nil
}

func (s *showCmd) runRemote(c *cli) error {
	if s.SpecID == "" {
		return fmt.Errorf("--spec-id is required with --remote")
	}
	ctx := context.Background()
	st, closeFn, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	sp, err := st.GetSpec(ctx, s.SpecID)
	if err != nil {
		return err
	}
	fmt.Printf("spec %s  phase=%s  archived=%v\n", sp.ID, sp.CurrentPhase, sp.Archived)
	keys := make([]string, 0, len(sp.PhaseData))
	for k := range sp.PhaseData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  phase_data[%s]\n", k)
	}
	return nil
}

func printKind(artifacts []specphase.Artifact, kind specphase.ArtifactKind) {
	for _, a := range artifacts {
		if a.Kind == kind {
			fmt.Printf("%-20s %-10s %s\n", a.Frontmatter.ID, a.Frontmatter.Status, strings.Join(a.Frontmatter.BlockedBy, ","))
		}
	}
}

// readyTasks returns every task artifact whose blockers are all
// Implemented — the set a scheduler could hand out work from right now.
func readyTasks(artifacts []specphase.Artifact) []specphase.Artifact {
	byID := make(map[string]specphase.Artifact, len(artifacts))
	for _, a := range artifacts {
		byID[a.Frontmatter.ID] = a
	}

	var ready []specphase.Artifact
	for _, a := range artifacts {
		if a.Kind != specphase.ArtifactTask {
			continue
		}
		if a.Frontmatter.Status == "Implemented" || a.Frontmatter.Status == "Archived" {
			continue
		}
		blocked := false
		for _, dep := range a.Frontmatter.BlockedBy {
			if blocker, ok := byID[dep]; !ok || blocker.Frontmatter.Status != "Implemented" {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, a)
		}
	}
	return ready
}

func printGraph(artifacts []specphase.Artifact) {
	for _, a := range artifacts {
		fmt.Printf("%s\n", a.Frontmatter.ID)
		for _, dep := range a.Frontmatter.BlockedBy {
			fmt.Printf("  <- %s\n", dep)
		}
		for _, dep := range a.Frontmatter.Blocks {
			fmt.Printf("  -> %s\n", dep)
		}
	}
}

type validateCmd struct{}

func (v *validateCmd) Run(c *cli) error {
	artifacts, err := loadArtifacts(c.Output)
	if err != nil {
		return err
	}
	if err := specphase.ValidateArtifactSet(artifacts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("ok")
	return nil
}

type syncCmd struct {
	Push syncPushCmd `cmd:"" help:"Upload the local artifact tree into the Entity Store."`
	Pull syncPullCmd `cmd:"" help:"Write the Entity Store's artifacts out to the local tree."`
}

// syncArtifactsKey is the phase_data key under which the concatenated
// artifact document set is stored — the same separator specphase's
// sync-phase scorer uses to split a multi-artifact SYNC response.
const syncArtifactsKey = "cli_synced_artifacts"
const syncArtifactsSeparator = "\n===\n"

type syncPushCmd struct {
	SpecID string `arg:"" help:"Spec id to push into."`
}

func (s *syncPushCmd) Run(c *cli) error {
	artifacts, err := loadArtifactDocuments(c.Output)
	if err != nil {
		return err
	}
	joined := strings.Join(artifacts, syncArtifactsSeparator)

	ctx := context.Background()
	st, closeFn, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := st.RecordSyncSummary(ctx, s.SpecID, "cli_sync", map[string]interface{}{
		syncArtifactsKey: joined,
	}, ""); err != nil {
		return fmt.Errorf("push artifacts: %w", err)
	}
	fmt.Println("pushed")
	return nil
}

type syncPullCmd struct {
	SpecID string `arg:"" help:"Spec id to pull from."`
}

func (s *syncPullCmd) Run(c *cli) error {
	ctx := context.Background()
	st, closeFn, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	sp, err := st.GetSpec(ctx, s.SpecID)
	if err != nil {
		return err
	}

	raw, ok := sp.PhaseData[syncArtifactsKey].(string)
	if !ok || raw == "" {
		return fmt.Errorf("spec %s has no synced artifacts to pull", s.SpecID)
	}

	for _, doc := range strings.Split(raw, syncArtifactsSeparator) {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		a, err := specphase.ParseArtifact(doc)
		if err != nil {
			return fmt.Errorf("parse pulled artifact: %w", err)
		}
		if err := writeArtifact(c.Output, a, doc); err != nil {
			return err
		}
	}
	fmt.Println("pulled")
	return nil
}

func writeArtifact(output string, a specphase.Artifact, doc string) error {
	var dir string
	switch a.Kind {
	case specphase.ArtifactRequirement:
		dir = "requirements"
	case specphase.ArtifactDesign:
		dir = "design"
	case specphase.ArtifactTask:
		dir = "tasks"
	case specphase.ArtifactTicket:
		dir = "tickets"
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	full := filepath.Join(output, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", full, err)
	}
	path := filepath.Join(full, a.Frontmatter.ID+".md")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// loadArtifactDocuments re-reads the raw file contents (rather than the
// already-parsed structures loadArtifacts returns) so sync push ships
// the exact bytes on disk, not a re-serialized approximation.
func loadArtifactDocuments(output string) ([]string, error) {
	var docs []string
	for _, dir := range []string{"requirements", "design", "tasks", "tickets"} {
		entries, err := filepath.Glob(filepath.Join(output, dir, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		sort.Strings(entries)
		for _, path := range entries {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			docs = append(docs, string(raw))
		}
	}
	return docs, nil
}

func connectStore(ctx context.Context) (*store.Store, func(), error) {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load database config: %w", err)
	}
	client, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return store.New(client), func() { _ = client.Close() }, nil
}
