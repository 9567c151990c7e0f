package jobs_test

import (
	"testing"

	"speechtrim/internal/jobs"
)

func TestStageStatusDerivation(t *testing.T) {
	cases := map[jobs.Stage]jobs.Status{
		jobs.StageQueued:          jobs.StatusPending,
		jobs.StageExtractingAudio: jobs.StatusInProgress,
		jobs.StageTrimmingVideo:   jobs.StatusInProgress,
		jobs.StageCompleted:       jobs.StatusCompleted,
		jobs.StageFailed:          jobs.StatusFailed,
	}
	for stage, want := range cases {
		if got := stage.Status(); got != want {
			t.Fatalf("%s.Status() = %s, want %s", stage, got, want)
		}
	}
}

func TestStageOrderingAndLabels(t *testing.T) {
	stages := jobs.AllStages()
	for i := 1; i < len(stages); i++ {
		if stages[i].Rank() <= stages[i-1].Rank() {
			t.Fatalf("stage %s should rank after %s", stages[i], stages[i-1])
		}
	}
	if jobs.StageDetectingSpeech.Label() != "Detecting Speech" {
		t.Fatalf("unexpected label %q", jobs.StageDetectingSpeech.Label())
	}
	if _, ok := jobs.ParseStage("Trimming_Video"); !ok {
		t.Fatal("expected case-insensitive stage parse")
	}
	if _, ok := jobs.ParseStatus("bogus"); ok {
		t.Fatal("unexpected status parse success")
	}
}
