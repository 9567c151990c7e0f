// Package trimplan turns kept speech segments into an ffmpeg filter graph that
// cuts each span out of the source and concatenates them.
package trimplan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"speechtrim/internal/segments"
)

// ErrNoSegments is returned when there is nothing to keep.
var ErrNoSegments = errors.New("no segments to keep")

// Plan is a rendered filter graph plus the spans it keeps.
type Plan struct {
	Filter   string
	Segments []segments.Segment
}

// Build renders the trim/concat filter graph for segs, in the given order.
func Build(segs []segments.Segment) (Plan, error) {
	if len(segs) == 0 {
		return Plan{}, ErrNoSegments
	}
	var b strings.Builder
	for i, seg := range segs {
		if seg.End <= seg.Start {
			return Plan{}, fmt.Errorf("segment %d: end %.2f is not after start %.2f", i, seg.End, seg.Start)
		}
		start := formatSeconds(seg.Start)
		end := formatSeconds(seg.End)
		fmt.Fprintf(&b, "[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d];", start, end, i)
		fmt.Fprintf(&b, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d];", start, end, i)
	}
	for i := range segs {
		fmt.Fprintf(&b, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", len(segs))

	return Plan{
		Filter:   b.String(),
		Segments: append([]segments.Segment(nil), segs...),
	}, nil
}

// Args renders the ffmpeg argument vector that applies the plan to source.
func (p Plan) Args(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-i", source,
		"-filter_complex", p.Filter,
		"-map", "[outv]",
		"-map", "[outa]",
		dest,
	}
}

// Duration returns the total kept time in seconds.
func (p Plan) Duration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration()
	}
	return total
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
