package jobs

import (
	"fmt"
	"math"
)

// Progress checkpoints reached as each stage starts or finishes.
const (
	ProgressSeparating  = 5
	ProgressSeparated   = 35
	ProgressTranscribed = 50
	ProgressTranslated  = 60
	ProgressProxyStart  = 75
	ProgressProxySpan   = 12
	ProgressConverted   = 88
	ProgressMixed       = 95
	ProgressDone        = 100
)

// SegmentProgress maps done of total rendered segments onto 75..87.
func SegmentProgress(done, total int) int {
	if total <= 0 {
		return ProgressProxyStart
	}
	done = min(max(done, 0), total)
	return int(math.Round(ProgressProxyStart + ProgressProxySpan*float64(done)/float64(total)))
}

// SegmentStage labels the proxy stage while segments render.
func SegmentStage(done, total int) string {
	return fmt.Sprintf("%s (%d/%d)", StatusProxyTTS, done, total)
}
