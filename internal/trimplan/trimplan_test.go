package trimplan_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"speechtrim/internal/segments"
	"speechtrim/internal/trimplan"
)

func TestBuildSingleSegment(t *testing.T) {
	plan, err := trimplan.Build([]segments.Segment{{Start: 1.5, End: 3.25, Text: "hi"}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := "[0:v]trim=start=1.5:end=3.25,setpts=PTS-STARTPTS[v0];" +
		"[0:a]atrim=start=1.5:end=3.25,asetpts=PTS-STARTPTS[a0];" +
		"[v0][a0]concat=n=1:v=1:a=1[outv][outa]"
	if plan.Filter != want {
		t.Fatalf("Filter =\n%s\nwant\n%s", plan.Filter, want)
	}
}

func TestBuildMultipleSegmentsInOrder(t *testing.T) {
	plan, err := trimplan.Build([]segments.Segment{
		{Start: 0, End: 1},
		{Start: 2, End: 3.5},
		{Start: 10, End: 12},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.HasSuffix(plan.Filter, "[v0][a0][v1][a1][v2][a2]concat=n=3:v=1:a=1[outv][outa]") {
		t.Fatalf("unexpected concat tail: %s", plan.Filter)
	}
	if strings.Index(plan.Filter, "[v1]") > strings.Index(plan.Filter, "[v2]") {
		t.Fatal("segments rendered out of order")
	}
	if math.Abs(plan.Duration()-4.5) > 1e-9 {
		t.Fatalf("unexpected duration %v", plan.Duration())
	}
}

func TestBuildRejectsEmptyAndInverted(t *testing.T) {
	if _, err := trimplan.Build(nil); !errors.Is(err, trimplan.ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
	if _, err := trimplan.Build([]segments.Segment{{Start: 2, End: 2}}); err == nil {
		t.Fatal("expected error for zero-length segment")
	}
}

func TestArgsMapsOutputs(t *testing.T) {
	plan, err := trimplan.Build([]segments.Segment{{Start: 0, End: 1}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	args := strings.Join(plan.Args("in.mp4", "out.mp4"), " ")
	for _, want := range []string{"-i in.mp4", "-filter_complex ", "-map [outv] -map [outa] out.mp4"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}
