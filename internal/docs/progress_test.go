package docs

import "testing"

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		stage  Stage
		want   int
	}{
		{"pending", StatusPending, "", 0},
		{"uploading", StatusProcessing, StageUploading, 5},
		{"parsing", StatusProcessing, StageParsing, 30},
		{"chunking", StatusProcessing, StageChunking, 58},
		{"graph extracting", StatusProcessing, StageGraphExtracting, 70},
		{"indexing", StatusProcessing, StageIndexing, 88},
		{"completed", StatusCompleted, "", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Status: tt.status, Stage: tt.stage}
			if got := Progress(doc); got != tt.want {
				t.Errorf("Progress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressNeverReports100WhileRunning(t *testing.T) {
	for _, stage := range stageOrder {
		doc := &Document{Status: StatusProcessing, Stage: stage}
		if got := Progress(doc); got >= 100 {
			t.Errorf("stage %s reports %d", stage, got)
		}
	}
}

func TestETASeconds(t *testing.T) {
	doc := &Document{Status: StatusProcessing, Stage: StageParsing, PageCount: 10}
	// 10 pages at 2s/page, 30% done
	if got := ETASeconds(doc); got != 14 {
		t.Errorf("ETA = %d, want 14", got)
	}

	unknown := &Document{Status: StatusProcessing, Stage: StageUploading}
	// fallback 30 pages at 2s/page, 5% done
	if got := ETASeconds(unknown); got != 57 {
		t.Errorf("ETA with unknown pages = %d, want 57", got)
	}

	done := &Document{Status: StatusCompleted, PageCount: 10}
	if got := ETASeconds(done); got != 0 {
		t.Errorf("ETA for completed = %d, want 0", got)
	}
}
