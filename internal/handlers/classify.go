package handlers

import (
	"context"
	"time"

	"github.com/CLIAIBRAIN/internal/deps"
	"github.com/CLIAIBRAIN/internal/metrics"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/types"
)

// Classifier loads a project's tasks from the notebook and runs the
// dependency engine. Shared by the task and feature handlers so both
// see the same classification semantics.
type Classifier struct {
	nb   *notebook.Notebook
	home string
}

// NewClassifier creates a classifier; home anchors relative and ~/
// workdir resolution
func NewClassifier(nb *notebook.Notebook, home string) *Classifier {
	return &Classifier{nb: nb, home: home}
}

// Projects lists the projects that have a task directory
func (c *Classifier) Projects(ctx context.Context) ([]string, error) {
	return c.nb.Projects(ctx)
}

// Classified loads and classifies one project's task graph
func (c *Classifier) Classified(ctx context.Context, project string) (types.ClassificationResult, error) {
	docs, err := c.nb.List(ctx, notebook.TaskFilters(project))
	if err != nil {
		return types.ClassificationResult{}, err
	}

	tasks := make([]types.Entry, 0, len(docs))
	for i := range docs {
		e := docs[i].ToEntry()
		if e.IsTask() {
			tasks = append(tasks, e)
		}
	}

	start := time.Now()
	result := deps.ClassifyWithHome(tasks, c.home)
	metrics.ObserveClassification(project, map[string]int{
		"ready":       result.Stats.Ready,
		"waiting":     result.Stats.Waiting,
		"blocked":     result.Stats.Blocked,
		"not_pending": result.Stats.NotPending,
	}, len(result.Cycles), time.Since(start).Seconds())

	return result, nil
}
