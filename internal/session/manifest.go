package session

import (
	"encoding/json"
	"path/filepath"

	"github.com/behaviorlab/framereview/pkg/util"
)

// SaveOrder persists config.json including the exact manifest order. Paths are
// stored relative to the input folder when possible so the session survives
// the whole tree being moved; absolute paths are the fallback.
func (s *Session) SaveOrder() error {
	order := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		if it.RelativePath != "" {
			order = append(order, it.RelativePath)
		} else {
			order = append(order, it.SourcePath)
		}
	}
	s.Config.VideoOrder = order

	data, err := json.MarshalIndent(s.Config, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(filepath.Join(s.Dir, configFile), data, 0644)
}

// Reconcile merges a freshly discovered item list against the stored order.
// Stored entries still present on disk keep their position (matched by stored
// path first, identity as fallback). Stored entries missing from disk are
// dropped from navigation; their mark files, if any, stay in per_trial and
// still appear in the merge. Discovered items absent from the stored order are
// appended at the end in discovery (sorted) order. Returns whether anything
// was appended, so the caller knows to re-persist.
func (s *Session) Reconcile(discovered []Item) bool {
	byRel := make(map[string]Item, len(discovered))
	byAbs := make(map[string]Item, len(discovered))
	byStem := make(map[string]Item, len(discovered))
	for _, it := range discovered {
		if it.RelativePath != "" {
			byRel[it.RelativePath] = it
		}
		byAbs[it.SourcePath] = it
		byStem[it.Identity] = it
	}

	var ordered []Item
	inManifest := make(map[string]bool)
	for _, stored := range s.Config.VideoOrder {
		it, ok := byRel[filepath.ToSlash(stored)]
		if !ok {
			it, ok = byAbs[stored]
		}
		if !ok {
			// Moved asset: fall back to matching by identity.
			it, ok = byStem[util.Stem(stored)]
		}
		if !ok {
			s.logger.Warn().Str("path", stored).Msg("video from stored order not found, skipping")
			continue
		}
		if inManifest[it.Identity] {
			continue
		}
		ordered = append(ordered, it)
		inManifest[it.Identity] = true
	}

	appended := false
	for _, it := range discovered {
		if !inManifest[it.Identity] {
			ordered = append(ordered, it)
			inManifest[it.Identity] = true
			appended = true
			s.logger.Info().Str("video", it.Identity).Msg("new video appended to session order")
		}
	}

	s.Items = ordered
	return appended
}
