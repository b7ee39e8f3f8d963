package docs

import "math"

// relative cost of each pipeline stage, summing to 1
var stageWeights = map[Stage]float64{
	StageUploading:       0.10,
	StageParsing:         0.40,
	StageChunking:        0.15,
	StageGraphExtracting: 0.10,
	StageIndexing:        0.25,
}

const (
	secondsPerPage   = 2
	fallbackPages    = 30
	maxRunningPct    = 99
	runningStageFrac = 0.5
)

// Progress estimates completion percent for a document. Completed stages
// count fully, the running stage counts half. The result is capped below
// 100 so only a completed document ever reports 100.
func Progress(doc *Document) int {
	switch doc.Status {
	case StatusCompleted:
		return 100
	case StatusPending:
		return 0
	case StatusFailed:
		// keep the last reported progress shape: failed docs show where
		// they stopped
	}

	var pct float64
	for _, stage := range stageOrder {
		if stage == doc.Stage {
			pct += stageWeights[stage] * runningStageFrac
			break
		}
		pct += stageWeights[stage]
	}

	out := int(math.Round(pct * 100))
	if out > maxRunningPct {
		out = maxRunningPct
	}
	return out
}

// ETASeconds estimates remaining processing time from the page count and
// current progress. Page count is unknown before parsing finishes, so a
// typical document size is assumed.
func ETASeconds(doc *Document) int {
	if doc.Status == StatusCompleted || doc.Status == StatusFailed {
		return 0
	}
	pages := doc.PageCount
	if pages <= 0 {
		pages = fallbackPages
	}
	total := pages * secondsPerPage
	remaining := float64(total) * (1 - float64(Progress(doc))/100)
	return int(math.Ceil(remaining))
}
