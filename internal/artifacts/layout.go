package artifacts

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Public artifact names. Only these are served from a job directory.
const (
	VocalsFile           = "vocals.wav"
	InstrumentalFile     = "instrumental.wav"
	ProxyFile            = "proxy_full.wav"
	TranslatedVocalsFile = "v_translated_vocals.wav"
	FinalMixFile         = "final_mix.wav"
)

const (
	trimmedFile     = "input_trimmed.wav"
	conversionFile  = "proxy_svc_in.wav"
	stemsDir        = "stems"
	segmentsDir     = "proxy_segments"
	uploadPrefix    = "upload"
	segmentDirWidth = 4
)

var servable = map[string]bool{
	VocalsFile:           true,
	InstrumentalFile:     true,
	ProxyFile:            true,
	TranslatedVocalsFile: true,
	FinalMixFile:         true,
}

// Servable reports whether name is a public artifact.
func Servable(name string) bool {
	return servable[name]
}

// Layout resolves paths inside one job directory.
type Layout struct {
	Root  string
	JobID string
}

// NewLayout returns the layout of job id under jobsDir.
func NewLayout(jobsDir, id string) Layout {
	return Layout{Root: filepath.Join(jobsDir, id), JobID: id}
}

// Ensure creates the job directory.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	return nil
}

// Upload is the stored copy of the submitted file. The extension of the
// original name is kept so ffmpeg can sniff the container.
func (l Layout) Upload(sourceName string) string {
	ext := strings.ToLower(filepath.Ext(sourceName))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return filepath.Join(l.Root, uploadPrefix+ext)
}

func (l Layout) Trimmed() string          { return filepath.Join(l.Root, trimmedFile) }
func (l Layout) StemsDir() string         { return filepath.Join(l.Root, stemsDir) }
func (l Layout) Vocals() string           { return filepath.Join(l.Root, VocalsFile) }
func (l Layout) Instrumental() string     { return filepath.Join(l.Root, InstrumentalFile) }
func (l Layout) Proxy() string            { return filepath.Join(l.Root, ProxyFile) }
func (l Layout) ConversionInput() string  { return filepath.Join(l.Root, conversionFile) }
func (l Layout) TranslatedVocals() string { return filepath.Join(l.Root, TranslatedVocalsFile) }
func (l Layout) FinalMix() string         { return filepath.Join(l.Root, FinalMixFile) }

// SegmentsDir holds one scratch directory per rendered segment.
func (l Layout) SegmentsDir() string {
	return filepath.Join(l.Root, segmentsDir)
}

// SegmentDir returns proxy_segments/NNNN for segment index.
func (l Layout) SegmentDir(index int) string {
	return filepath.Join(l.SegmentsDir(), fmt.Sprintf("%0*d", segmentDirWidth, index))
}

// Resolve maps a request for (id, name) to a file under jobsDir. The id must
// be a job UUID and name a servable artifact, which rules out traversal.
func Resolve(jobsDir, id, name string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid job id %q", id)
	}
	if name != path.Base(name) || !Servable(name) {
		return "", fmt.Errorf("artifact %q is not served", name)
	}
	return filepath.Join(jobsDir, id, name), nil
}

// LocalURL returns the HTTP location of an artifact served by the daemon.
// An empty base yields a root-relative URL.
func LocalURL(base, id, name string) string {
	rel := "/files/" + url.PathEscape(id) + "/" + url.PathEscape(name)
	return strings.TrimRight(base, "/") + rel
}
