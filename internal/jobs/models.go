package jobs

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusSeparating   Status = "separating"
	StatusTranscribing Status = "transcribing"
	StatusTranslating  Status = "translating"
	StatusProxyTTS     Status = "proxy_tts"
	StatusSVC          Status = "svc"
	StatusMixing       Status = "mixing"
	StatusDone         Status = "done"
	StatusError        Status = "error"
)

// InterruptedReason is recorded on jobs that were running when the daemon
// stopped.
const InterruptedReason = "daemon stopped before the job finished"

var allStatuses = []Status{
	StatusQueued,
	StatusSeparating,
	StatusTranscribing,
	StatusTranslating,
	StatusProxyTTS,
	StatusSVC,
	StatusMixing,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus reports whether value names a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := statusSet[status]
	return status, ok
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Processing reports whether a worker is actively running the job.
func (s Status) Processing() bool {
	return s != StatusQueued && !s.Terminal()
}

// MinSegmentDuration floors the duration of a transcribed segment.
const MinSegmentDuration = 0.05

// Word is a word-level timing from transcription.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is one transcribed phrase of the vocal line.
type Segment struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Translated string  `json:"translated,omitempty"`
	Language   string  `json:"language,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

// Duration returns End-Start, floored at MinSegmentDuration.
func (s Segment) Duration() float64 {
	return math.Max(s.End-s.Start, MinSegmentDuration)
}

// Results collects artifacts as stages complete.
type Results struct {
	Vocals           string    `json:"vocals,omitempty"`
	Instrumental     string    `json:"instrumental,omitempty"`
	ProxyVocals      string    `json:"proxy_vocals,omitempty"`
	TranslatedVocals string    `json:"translated_vocals,omitempty"`
	FinalMix         string    `json:"final_mix,omitempty"`
	SelectedVoice    string    `json:"selected_voice,omitempty"`
	SegmentCount     int       `json:"segments_count,omitempty"`
	WordCount        int       `json:"words_count,omitempty"`
	Segments         []Segment `json:"segments,omitempty"`
}

// URLs returns the non-empty artifact URLs in pipeline order.
func (r Results) URLs() []string {
	var out []string
	for _, u := range []string{r.Vocals, r.Instrumental, r.ProxyVocals, r.TranslatedVocals, r.FinalMix} {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// NoteKind names a best-effort sub-stage that can degrade without failing
// the job.
type NoteKind string

const (
	NoteTTS         NoteKind = "tts"
	NoteSpeaker     NoteKind = "speaker"
	NotePublish     NoteKind = "publish"
	NoteTranslation NoteKind = "translation"
)

// Notes records soft failures.
type Notes struct {
	TTS         string `json:"tts,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	Publish     string `json:"publish,omitempty"`
	Translation string `json:"translation,omitempty"`
}

func (n *Notes) field(kind NoteKind) *string {
	switch kind {
	case NoteTTS:
		return &n.TTS
	case NoteSpeaker:
		return &n.Speaker
	case NotePublish:
		return &n.Publish
	case NoteTranslation:
		return &n.Translation
	}
	return nil
}

// Empty reports whether no note was recorded.
func (n Notes) Empty() bool {
	return n == Notes{}
}

// Job is the record of one dubbing request.
type Job struct {
	ID         string    `json:"job_id"`
	Status     Status    `json:"status"`
	Stage      string    `json:"stage"`
	Progress   int       `json:"progress"`
	Language   string    `json:"language"`
	SourceName string    `json:"source_name,omitempty"`
	Start      float64   `json:"start,omitempty"`
	End        float64   `json:"end,omitempty"`
	Results    Results   `json:"results"`
	Notes      Notes     `json:"notes"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewID returns a fresh job identifier.
func NewID() string {
	return uuid.NewString()
}

// New returns a queued job for the given language and source window.
func New(language, sourceName string, start, end float64) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         NewID(),
		Status:     StatusQueued,
		Stage:      string(StatusQueued),
		Language:   language,
		SourceName: sourceName,
		Start:      start,
		End:        end,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Results.Segments = cloneSegments(j.Results.Segments)
	return &out
}

func cloneSegments(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	for i, seg := range segs {
		out[i] = seg
		out[i].Words = slices.Clone(seg.Words)
	}
	return out
}

// Counts summarizes jobs per lifecycle group.
type Counts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Add folds one status into the counts.
func (c *Counts) Add(status Status) {
	c.Total++
	switch {
	case status == StatusQueued:
		c.Queued++
	case status == StatusDone:
		c.Done++
	case status == StatusError:
		c.Failed++
	default:
		c.Processing++
	}
}
