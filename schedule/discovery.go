// Package schedule triggers audit runs: a weekly cron entry, a one-shot
// trigger for manual invocation, and a filesystem watcher that reports
// corpus changes between runs. Discovery of the document corpus lives here
// because every trigger path starts from it.
package schedule

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/driftwatch/engine"
)

// docPattern matches tracked documents relative to the corpus root: one
// directory per topic, holding the topic's best-practices document.
const docPattern = "*/*-best-practices.md"

// maxDocSize caps a single document read. A larger file is a corpus fault,
// not a work item.
const maxDocSize = 2 * 1024 * 1024

// DiscoverWorkItems walks the corpus under docsDir and builds one work item
// per tracked document. The topic is the document's directory name. Items
// are returned in topic order so runs are deterministic.
func DiscoverWorkItems(docsDir string, logger *slog.Logger) ([]engine.WorkItem, error) {
	root := os.DirFS(docsDir)

	matches, err := doublestar.Glob(root, docPattern)
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", docsDir, err)
	}

	items := make([]engine.WorkItem, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, match := range matches {
		fullPath := filepath.Join(docsDir, filepath.FromSlash(match))
		topic := filepath.Base(filepath.Dir(fullPath))

		// One document per topic directory; glob order makes the pick stable.
		if seen[topic] {
			logger.Warn("Skipping extra document for topic", "topic", topic, "path", fullPath)
			continue
		}

		info, err := os.Stat(fullPath)
		if err != nil {
			logger.Warn("Skipping unreadable document", "path", fullPath, "error", err)
			continue
		}
		if info.Size() > maxDocSize {
			logger.Warn("Skipping oversized document",
				"path", fullPath,
				"size", info.Size())
			continue
		}

		content, err := os.ReadFile(fullPath)
		if err != nil {
			logger.Warn("Skipping unreadable document", "path", fullPath, "error", err)
			continue
		}

		seen[topic] = true
		items = append(items, engine.WorkItem{
			Topic:    topic,
			FilePath: fullPath,
			Content:  string(content),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Topic < items[j].Topic
	})

	logger.Info("Discovered document corpus", "dir", docsDir, "documents", len(items))

	return items, nil
}
