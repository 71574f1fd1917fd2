package timbre

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"

	"songdub/internal/audio"
	"songdub/internal/logging"
)

// maxClipsPerSpeaker bounds how many reference clips feed one profile.
const maxClipsPerSpeaker = 48

// Loader reads a reference clip.
type Loader func(path string) (*audio.Buffer, error)

// Matcher picks the reference speaker whose profile is nearest a query. Built
// profiles are cached per candidate set and the Matcher is safe for
// concurrent use.
type Matcher struct {
	root   string
	load   Loader
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]map[string][]float64
}

// NewMatcher builds a matcher over root, which holds one directory of WAV
// clips per speaker. A nil loader reads WAV files directly.
func NewMatcher(root string, load Loader, logger *slog.Logger) *Matcher {
	if load == nil {
		load = audio.ReadWAV
	}
	return &Matcher{
		root:   root,
		load:   load,
		logger: logging.NewComponentLogger(logger, "timbre"),
		cache:  make(map[string]map[string][]float64),
	}
}

// Speakers lists the speaker directories under root, sorted.
func (m *Matcher) Speakers() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("list speakers: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Select returns the candidate whose profile has the highest cosine
// similarity to query. Candidates without usable clips are skipped. When no
// comparison is possible the first candidate (sorted) is returned along with
// a non-nil error describing why.
func (m *Matcher) Select(query *audio.Buffer, candidates []string) (string, error) {
	speakers := slices.Clone(candidates)
	sort.Strings(speakers)
	speakers = slices.Compact(speakers)
	if len(speakers) == 0 {
		return "", fmt.Errorf("timbre: no candidate speakers")
	}

	profiles := m.profiles(speakers)
	if len(profiles) == 0 {
		return speakers[0], fmt.Errorf("timbre: no reference clips under %s", m.root)
	}
	emb, err := Embedding(query)
	if err != nil {
		return speakers[0], err
	}

	best, bestScore := speakers[0], -2.0
	for _, name := range speakers {
		profile, ok := profiles[name]
		if !ok {
			continue
		}
		if score := floats.Dot(emb, profile); score > bestScore {
			best, bestScore = name, score
		}
	}
	m.logger.Debug("speaker selected", logging.Args(
		logging.String("speaker", best),
		logging.Float64("similarity", bestScore),
	)...)
	return best, nil
}

func (m *Matcher) profiles(speakers []string) map[string][]float64 {
	key := m.root + "\x00" + strings.Join(speakers, "\x00")
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.cache[key]; ok {
		return cached
	}
	built := make(map[string][]float64, len(speakers))
	for _, name := range speakers {
		if profile := m.buildProfile(name); profile != nil {
			built[name] = profile
		}
	}
	m.cache[key] = built
	return built
}

func (m *Matcher) buildProfile(speaker string) []float64 {
	clips, err := filepath.Glob(filepath.Join(m.root, speaker, "*.wav"))
	if err != nil || len(clips) == 0 {
		return nil
	}
	sort.Strings(clips)
	if len(clips) > maxClipsPerSpeaker {
		clips = clips[:maxClipsPerSpeaker]
	}

	var sum []float64
	for _, clip := range clips {
		buf, err := m.load(clip)
		if err != nil {
			logging.WarnWithContext(m.logger, "reference clip unreadable", "timbre_clip_skipped",
				logging.String("clip", clip),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-encode the clip as PCM WAV"),
				logging.String(logging.FieldImpact, "clip excluded from speaker profile"),
			)
			continue
		}
		emb, err := Embedding(buf)
		if err != nil {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(emb))
		}
		floats.Add(sum, emb)
	}
	if sum == nil {
		return nil
	}
	profile, err := normalize(sum)
	if err != nil {
		return nil
	}
	return profile
}
