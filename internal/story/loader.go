package story

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"story-engine/internal/domain"

	"go.uber.org/zap"
)

//go:embed samples/*.json
var samplesFS embed.FS

// Bundle is the on-disk content format: any number of stories and mini-game
// catalog entries per JSON file.
type Bundle struct {
	Stories   []domain.Story    `json:"stories"`
	MiniGames []domain.MiniGame `json:"miniGames"`
}

// Merge appends other into b.
func (b *Bundle) Merge(other Bundle) {
	b.Stories = append(b.Stories, other.Stories...)
	b.MiniGames = append(b.MiniGames, other.MiniGames...)
}

// LoadDir reads every *.json file in dir (non-recursive, sorted by name),
// validates the content and returns the merged bundle.
func LoadDir(dir string, logger *zap.Logger) (Bundle, error) {
	return LoadFS(os.DirFS(dir), ".", logger)
}

// Samples returns the content bundle shipped with the engine.
func Samples() (Bundle, error) {
	return LoadFS(samplesFS, "samples", zap.NewNop())
}

// LoadFS is LoadDir over an fs.FS.
func LoadFS(fsys fs.FS, dir string, logger *zap.Logger) (Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("StoryLoader")

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to read story directory %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out Bundle
	storyIDs := make(map[string]string)
	gameIDs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := path.Join(dir, entry.Name())
		bundle, err := decodeFile(fsys, name)
		if err != nil {
			return Bundle{}, err
		}
		for i := range bundle.Stories {
			s := &bundle.Stories[i]
			if err := Validate(s); err != nil {
				return Bundle{}, fmt.Errorf("%s: %w", name, err)
			}
			if prev, dup := storyIDs[s.ID]; dup {
				return Bundle{}, fmt.Errorf("%s: story %q already defined in %s", name, s.ID, prev)
			}
			storyIDs[s.ID] = name
		}
		for i := range bundle.MiniGames {
			g := &bundle.MiniGames[i]
			if err := ValidateMiniGame(g); err != nil {
				return Bundle{}, fmt.Errorf("%s: %w", name, err)
			}
			if prev, dup := gameIDs[g.ID]; dup {
				return Bundle{}, fmt.Errorf("%s: mini-game %q already defined in %s", name, g.ID, prev)
			}
			gameIDs[g.ID] = name
		}
		log.Debug("Content file loaded",
			zap.String("file", name),
			zap.Int("stories", len(bundle.Stories)),
			zap.Int("miniGames", len(bundle.MiniGames)),
		)
		out.Merge(bundle)
	}
	log.Info("Story content loaded",
		zap.Int("stories", len(out.Stories)),
		zap.Int("miniGames", len(out.MiniGames)),
	)
	return out, nil
}

func decodeFile(fsys fs.FS, name string) (Bundle, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return bundle, nil
}
