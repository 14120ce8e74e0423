package skyline

import (
	"fmt"
	"strconv"
)

// Window is a closed interval of calendar dates.
type Window struct {
	Start, End float64
}

// Windows splits [d1, d2] into n windows of equal width.
func Windows(d1, d2 float64, n int) ([]Window, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of windows should be positive, got %d", n)
	}
	if d2 <= d1 {
		return nil, fmt.Errorf("the latest date (%v) should be after the earliest date (%v)", d2, d1)
	}
	width := (d2 - d1) / float64(n)
	ws := make([]Window, n)
	for i := range ws {
		ws[i] = Window{
			Start: d1 + width*float64(i),
			End:   d1 + width*float64(i+1),
		}
	}
	return ws, nil
}

// Value is a resampled population size. Windows which are not
// covered by the tree have no value.
type Value struct {
	Size    float64
	Covered bool
}

// String formats the value for tabular output, windows without data
// are written as 0.
func (v Value) String() string {
	if !v.Covered {
		return "0"
	}
	return strconv.FormatFloat(v.Size, 'g', -1, 64)
}

// Resample assigns a population size to every window. Each window is
// compared with every segment in order, the last matching segment
// wins:
//
//   - if the window starts in the segment and ends at or after its
//     end, the window gets the size of the following segment (or of
//     the segment itself if it is the last one);
//   - if the window is inside the segment, it gets the segment size.
//
// Windows matching no segment are not covered.
func Resample(s Skyline, ws []Window) []Value {
	values := make([]Value, len(ws))
	for k, w := range ws {
		for i, seg := range s {
			if w.Start >= seg.Start && w.Start <= seg.End && w.End >= seg.End {
				if i != len(s)-1 {
					values[k] = Value{Size: s[i+1].Size, Covered: true}
				} else {
					values[k] = Value{Size: seg.Size, Covered: true}
				}
			} else if w.Start >= seg.Start && w.End <= seg.End {
				values[k] = Value{Size: seg.Size, Covered: true}
			}
		}
	}
	return values
}
