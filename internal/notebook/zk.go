package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/types"
)

// ZKBackend answers index queries through the zk CLI. Every call shells
// out; zk owns the index under the notebook root.
type ZKBackend struct {
	root   string
	bin    string
	runner CommandRunner

	mu       sync.Mutex
	probedAt time.Time
	probeOK  bool
}

const probeTTL = 30 * time.Second

// NewZKBackend creates a zk-CLI backend rooted at the notebook directory
func NewZKBackend(root, bin string, runner CommandRunner) *ZKBackend {
	if bin == "" {
		bin = "zk"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ZKBackend{root: root, bin: bin, runner: runner}
}

// Name identifies the backend in health output
func (z *ZKBackend) Name() string { return "zk" }

// Available probes the zk binary, caching the result briefly so health
// checks stay cheap
func (z *ZKBackend) Available(ctx context.Context) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	if time.Since(z.probedAt) < probeTTL {
		return z.probeOK
	}
	_, err := z.runner.Run(ctx, z.bin, []string{"--version"}, z.root)
	z.probedAt = time.Now()
	z.probeOK = err == nil
	return z.probeOK
}

// zkNote is the row shape `zk list --format json` emits
type zkNote struct {
	Path     string                 `json:"path"`
	Title    string                 `json:"title"`
	Lead     string                 `json:"lead"`
	Body     string                 `json:"body"`
	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata"`
	Created  string                 `json:"created"`
	Modified string                 `json:"modified"`
}

// List runs one zk list query and maps the rows
func (z *ZKBackend) List(ctx context.Context, f Filters) ([]Document, error) {
	args := []string{"list", "--format", "json", "--no-pager", "--quiet"}

	// When the type filter cannot be expressed as a path scope the limit
	// is applied after filtering instead of inside zk.
	postFilterType := f.Type != "" && f.Project == "" && !f.Global

	if f.Limit > 0 && !postFilterType {
		args = append(args, "--limit", strconv.Itoa(f.Limit))
	}
	if f.Tag != "" {
		args = append(args, "--tag", f.Tag)
	}
	if f.Match != "" {
		args = append(args, "--match", f.Match)
	}
	if f.LinkTo != "" {
		args = append(args, "--link-to", f.LinkTo)
	}
	if f.LinkedBy != "" {
		args = append(args, "--linked-by", f.LinkedBy)
	}
	if f.Related != "" {
		args = append(args, "--related", f.Related)
	}
	if f.Orphan {
		args = append(args, "--orphan")
	}
	args = append(args, scopePaths(f)...)

	out, err := z.runner.Run(ctx, z.bin, args, z.root)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, brainerr.Unavailable("notebook index unavailable: zk not installed")
		}
		return nil, brainerr.Unavailable("notebook index query failed: " + err.Error())
	}

	var notes []zkNote
	if len(out) > 0 {
		if err := json.Unmarshal(out, &notes); err != nil {
			return nil, brainerr.Io("parse zk output", err)
		}
	}

	docs := make([]Document, 0, len(notes))
	for _, n := range notes {
		docs = append(docs, Document{
			Path:     n.Path,
			Title:    n.Title,
			Tags:     n.Tags,
			Metadata: n.Metadata,
			Lead:     n.Lead,
			Body:     n.Body,
			Created:  parseTime(n.Created),
			Modified: parseTime(n.Modified),
		})
	}

	if postFilterType {
		docs = filterByType(docs, f.Type)
		if f.Limit > 0 && len(docs) > f.Limit {
			docs = docs[:f.Limit]
		}
	}
	return docs, nil
}

// scopePaths maps project/global/type filters onto zk path arguments
func scopePaths(f Filters) []string {
	switch {
	case f.Project != "" && f.Type != "":
		return []string{path.Join("projects", f.Project, string(f.Type))}
	case f.Project != "":
		return []string{path.Join("projects", f.Project)}
	case f.Global && f.Type != "":
		return []string{path.Join("global", string(f.Type))}
	case f.Global:
		return []string{"global"}
	case f.Type != "":
		return []string{path.Join("global", string(f.Type)), "projects"}
	default:
		return nil
	}
}

func docType(d Document) string {
	fm := Frontmatter{Fields: d.Metadata}
	if t := fm.GetString("type"); t != "" {
		return t
	}
	return string(TypeFromPath(d.Path))
}

func filterByType(docs []Document, want types.EntryType) []Document {
	out := docs[:0]
	for _, d := range docs {
		if docType(d) == string(want) {
			out = append(out, d)
		}
	}
	return out
}
