// Package aggregate folds scanned items and issues into bounded summary state:
// counters, largest files and folders, live folder sizes and enumeration errors.
package aggregate

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// Defaults.
const (
	DefaultTopN              = 20
	DefaultFolderSampleFiles = 5
	DefaultFolderMapCap      = 10000
	MaxEnumerationErrors     = 100

	// folderOverfetch widens the folder tracker so nested folders can be
	// filtered out while still filling the top list.
	folderOverfetch = 4
)

// folderStat accumulates one directory's subtree while it is live.
type folderStat struct {
	size  int64
	files int64
	seq   uint64
	top   *TopN[model.FileEntry]
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu   sync.Mutex
	root string
	topN int

	items   int64
	files   int64
	folders int64
	bytes   int64

	summary  model.Summary
	largest  *TopN[model.FileEntry]
	topDirs  *TopN[model.FolderEntry]
	live     map[string]*folderStat
	liveSeq  uint64
	errCount int64
	errs     []model.EnumerationError
}

// New creates an aggregator for a scan of root keeping topN files and folders.
func New(root string, topN int) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}

	return &Aggregator{
		root:    root,
		topN:    topN,
		summary: model.NewSummary(),
		largest: NewTopN[model.FileEntry](topN),
		topDirs: NewTopN[model.FolderEntry](topN * folderOverfetch),
		live:    make(map[string]*folderStat),
	}
}

// AddItem counts an item. File sizes are added to every ancestor folder
// below the root.
func (a *Aggregator) AddItem(item *model.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items++

	if item.IsDir {
		a.folders++

		return
	}

	a.files++
	a.bytes += item.Size

	entry := model.FileEntry{Path: item.Path, Size: item.Size}
	a.largest.Offer(entry, item.Size)

	model.Ancestors(item.RelPath, func(dir string) {
		stat := a.live[dir]
		if stat == nil {
			a.liveSeq++
			stat = &folderStat{seq: a.liveSeq, top: NewTopN[model.FileEntry](DefaultFolderSampleFiles)}
			a.live[dir] = stat
		}

		stat.size += item.Size
		stat.files++
		stat.top.Offer(entry, item.Size)
	})
}

// AddIssues folds issues into the summary counters.
func (a *Aggregator) AddIssues(issues []model.Issue) {
	if len(issues) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range issues {
		a.summary.Add(&issues[i])
	}
}

// CompleteDir offers a finished directory to the folder tracker and releases
// its live entry.
func (a *Aggregator) CompleteDir(rel string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stat, ok := a.live[rel]
	if !ok {
		return
	}

	delete(a.live, rel)

	a.topDirs.Offer(model.FolderEntry{
		Path:      a.abs(rel),
		Size:      stat.size,
		FileCount: stat.files,
		TopFiles:  stat.top.Sorted(),
	}, stat.size)
}

// CompleteAll offers every live directory to the folder tracker, for scans
// stopped before their directories finished.
func (a *Aggregator) CompleteAll() {
	a.mu.Lock()
	paths := a.sortedLive()
	a.mu.Unlock()

	for _, p := range paths {
		a.CompleteDir(p)
	}
}

// AddEnumerationError counts an unreadable entry, keeping the first few.
func (a *Aggregator) AddEnumerationError(e model.EnumerationError) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errCount++

	if len(a.errs) < MaxEnumerationErrors {
		a.errs = append(a.errs, e)
	}
}

// Totals holds the running counters.
type Totals struct {
	Items   int64
	Files   int64
	Folders int64
	Bytes   int64
	Issues  int64

	EnumerationErrors int64
}

// Totals returns the current counters.
func (a *Aggregator) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Totals{
		Items:             a.items,
		Files:             a.files,
		Folders:           a.folders,
		Bytes:             a.bytes,
		Issues:            a.summary.Total,
		EnumerationErrors: a.errCount,
	}
}

// LargestFolders returns up to topN folders, largest first, dropping any
// folder nested inside another listed folder.
func (a *Aggregator) LargestFolders() []model.FolderEntry {
	a.mu.Lock()
	sorted := a.topDirs.Sorted()
	a.mu.Unlock()

	return maximal(sorted, a.topN)
}

func maximal(sorted []model.FolderEntry, n int) []model.FolderEntry {
	out := make([]model.FolderEntry, 0, n)

	for _, f := range sorted {
		nested := false

		for _, kept := range sorted {
			if kept.Path != f.Path && isWithin(f.Path, kept.Path) {
				nested = true

				break
			}
		}

		if nested {
			continue
		}

		out = append(out, f)
		if len(out) == n {
			break
		}
	}

	return out
}

func isWithin(p, dir string) bool {
	return strings.HasPrefix(p, dir+string(filepath.Separator))
}

// Fill copies the aggregate into a result.
func (a *Aggregator) Fill(r *model.ScanResult) {
	folders := a.LargestFolders()

	a.mu.Lock()
	defer a.mu.Unlock()

	r.TotalItems = a.items
	r.TotalFiles = a.files
	r.TotalFolders = a.folders
	r.TotalBytes = a.bytes
	r.Summary = a.summary.Clone()
	r.LargestFiles = a.largest.Sorted()
	r.LargestFolders = folders
	r.EnumerationErrorCount = a.errCount
	r.EnumerationErrors = append([]model.EnumerationError(nil), a.errs...)
}

func (a *Aggregator) abs(rel string) string {
	return filepath.Join(a.root, filepath.FromSlash(rel))
}

// sortedLive returns live folder paths oldest first.
func (a *Aggregator) sortedLive() []string {
	paths := make([]string, 0, len(a.live))
	for p := range a.live {
		paths = append(paths, p)
	}

	sort.Slice(paths, func(i, j int) bool { return a.live[paths[i]].seq < a.live[paths[j]].seq })

	return paths
}
