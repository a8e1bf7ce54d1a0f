package session

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/behaviorlab/framereview/pkg/util"
)

// Row is one line of the merged tabular output.
type Row struct {
	Trial        string
	Mark         Mark // MarkFrame or MarkNoEvent, never MarkUnset
	RelativePath string
	Group        string
	Scorer       string
	Timestamp    time.Time
}

// Merge folds every recorded mark plus manifest metadata into ordered rows.
// Items without a mark file are excluded. Rows are sorted by trial identity;
// the timestamp is the merge invocation time, not the original mark time, so
// re-running merge is idempotent in everything but that column.
func (s *Session) Merge() ([]Row, error) {
	entries, err := os.ReadDir(s.perTrialPath())
	if err != nil {
		return nil, fmt.Errorf("per_trial directory not readable: %w", err)
	}

	byStem := make(map[string]Item, len(s.Items))
	for _, it := range s.Items {
		byStem[it.Identity] = it
	}

	now := time.Now()
	var rows []Row
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		trial := util.Stem(e.Name())

		// A mark for an item no longer on disk stays in the output; its
		// grouping just degrades to the unknown sentinel.
		it, ok := byStem[trial]
		if !ok {
			it = Item{Identity: trial}
		}

		mark := s.ReadMark(it)
		if mark.State == MarkUnset {
			continue
		}

		rows = append(rows, Row{
			Trial:        trial,
			Mark:         mark,
			RelativePath: it.RelativePath,
			Group:        it.Group(),
			Scorer:       s.Name(),
			Timestamp:    now,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Trial < rows[j].Trial })
	return rows, nil
}

// WriteResults renders rows to results.csv. The file is written atomically:
// on failure the previous results.csv, if any, is left untouched.
func (s *Session) WriteResults(rows []Row) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"trial", "frame", "relative_path", "group", "scorer", "timestamp"}); err != nil {
		return err
	}
	for _, r := range rows {
		frame := "NaN"
		if r.Mark.State == MarkFrame {
			frame = strconv.Itoa(r.Mark.Frame)
		}
		rec := []string{
			r.Trial,
			frame,
			r.RelativePath,
			r.Group,
			r.Scorer,
			r.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	path := filepath.Join(s.Dir, resultsFile)
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	s.logger.Info().Int("rows", len(rows)).Str("path", path).Msg("results merged")
	return nil
}

// MergeAndWrite is the finalization step: regenerate results.csv in full.
func (s *Session) MergeAndWrite() error {
	rows, err := s.Merge()
	if err != nil {
		return err
	}
	return s.WriteResults(rows)
}
