package aggregate

import "github.com/Sumatoshi-tech/prescan/pkg/model"

// FolderState is a live folder accumulator in checkpoint form.
type FolderState struct {
	Path     string            `json:"path"`
	Size     int64             `json:"size"`
	Files    int64             `json:"files"`
	TopFiles []model.FileEntry `json:"topFiles,omitempty"`
}

// Snapshot is a deep copy of the aggregate for checkpointing.
type Snapshot struct {
	Items   int64 `json:"items"`
	Files   int64 `json:"files"`
	Folders int64 `json:"folders"`
	Bytes   int64 `json:"bytes"`

	Summary        model.Summary       `json:"summary"`
	LargestFiles   []model.FileEntry   `json:"largestFiles,omitempty"`
	LargestFolders []model.FolderEntry `json:"largestFolders,omitempty"`
	LiveFolders    []FolderState       `json:"liveFolders,omitempty"`

	EnumerationErrorCount int64                    `json:"enumerationErrorCount,omitempty"`
	EnumerationErrors     []model.EnumerationError `json:"enumerationErrors,omitempty"`
}

// Snapshot copies the aggregate. At most folderCap live folders are kept,
// dropping the oldest inserted first; folderCap <= 0 keeps all.
func (a *Aggregator) Snapshot(folderCap int) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Items:                 a.items,
		Files:                 a.files,
		Folders:               a.folders,
		Bytes:                 a.bytes,
		Summary:               a.summary.Clone(),
		LargestFiles:          a.largest.Sorted(),
		LargestFolders:        a.topDirs.Sorted(),
		EnumerationErrorCount: a.errCount,
		EnumerationErrors:     append([]model.EnumerationError(nil), a.errs...),
	}

	paths := a.sortedLive()
	if folderCap > 0 && len(paths) > folderCap {
		paths = paths[len(paths)-folderCap:]
	}

	s.LiveFolders = make([]FolderState, 0, len(paths))

	for _, p := range paths {
		stat := a.live[p]
		s.LiveFolders = append(s.LiveFolders, FolderState{
			Path:     p,
			Size:     stat.size,
			Files:    stat.files,
			TopFiles: stat.top.Sorted(),
		})
	}

	return s
}

// Restore replaces the aggregate with a snapshot.
func (a *Aggregator) Restore(s *Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = s.Items
	a.files = s.Files
	a.folders = s.Folders
	a.bytes = s.Bytes

	a.summary = s.Summary.Clone()

	a.largest = NewTopN[model.FileEntry](a.topN)
	for _, f := range s.LargestFiles {
		a.largest.Offer(f, f.Size)
	}

	a.topDirs = NewTopN[model.FolderEntry](a.topN * folderOverfetch)
	for _, f := range s.LargestFolders {
		a.topDirs.Offer(f, f.Size)
	}

	a.live = make(map[string]*folderStat, len(s.LiveFolders))
	a.liveSeq = 0

	for _, f := range s.LiveFolders {
		a.liveSeq++

		stat := &folderStat{
			size:  f.Size,
			files: f.Files,
			seq:   a.liveSeq,
			top:   NewTopN[model.FileEntry](DefaultFolderSampleFiles),
		}

		for _, top := range f.TopFiles {
			stat.top.Offer(top, top.Size)
		}

		a.live[f.Path] = stat
	}

	a.errCount = s.EnumerationErrorCount
	a.errs = append([]model.EnumerationError(nil), s.EnumerationErrors...)
}
