// File: internal/taskset/taskset.go

// Package taskset loads the ordered task and criterion lists consumed by the
// evolution engine. Ordering is caller-determined: glob results are sorted
// lexicographically, and an optional one-time deterministic shuffle can be
// applied before the run starts. The engine itself never reorders anything.
package taskset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

// LoadGlob reads the content of every file matching pattern, sorted by
// filename. Matching zero files is a configuration error.
func LoadGlob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched pattern %q", pattern)
	}
	sort.Strings(paths)

	items := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		items = append(items, string(data))
	}
	return items, nil
}

// LoadDir reads every non-template file in dir (files with a .tmpl extension
// are skipped), sorted by filename.
func LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmpl") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no task files found in %s", dir)
	}
	sort.Strings(paths)

	items := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		items = append(items, string(data))
	}
	return items, nil
}

// Wrap passes each item through a wrapper template that references the item as
// {{.Content}}. Used for benchmark-specific framing of raw task files.
func Wrap(items []string, wrapperTemplate string) ([]string, error) {
	tmpl, err := template.New("wrapper").Option("missingkey=error").Parse(wrapperTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid wrapper template: %w", err)
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, struct{ Content string }{Content: item}); err != nil {
			return nil, fmt.Errorf("failed to wrap item %d: %w", i, err)
		}
		out = append(out, sb.String())
	}
	return out, nil
}

// Shuffle permutes tasks and criteria in place with the same deterministic
// permutation, keeping each task paired with its criterion. Equal seeds yield
// equal orderings.
func Shuffle(tasks, criteria []string, seed int64) error {
	if len(tasks) != len(criteria) {
		return fmt.Errorf("cannot shuffle: %d tasks but %d criteria", len(tasks), len(criteria))
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(tasks), func(i, j int) {
		tasks[i], tasks[j] = tasks[j], tasks[i]
		criteria[i], criteria[j] = criteria[j], criteria[i]
	})
	return nil
}
