package skyline

// Direction is the kind of change looked for.
type Direction int

const (
	Increase Direction = iota
	Decrease
)

func (d Direction) String() string {
	if d == Decrease {
		return "decrease"
	}
	return "increase"
}

// Threshold returns the population size which has to be crossed to
// register a change of p percent from base.
func (d Direction) Threshold(base, p float64) float64 {
	if d == Decrease {
		return base - base*(p/100)
	}
	return base + base*(p/100)
}

// Crosses is true if size is strictly beyond the threshold.
func (d Direction) Crosses(size, threshold float64) bool {
	if d == Decrease {
		return size < threshold
	}
	return size > threshold
}

// Origin is where the first increase search starts.
type Origin int

const (
	// FromPresent uses the most recent segment as the baseline and
	// searches towards the root.
	FromPresent Origin = iota
	// FromRoot uses the oldest segment as the baseline and searches
	// towards the present.
	FromRoot
)

func (o Origin) String() string {
	if o == FromRoot {
		return "root"
	}
	return "present"
}

// Status is the outcome of change detection for one sample.
type Status int

const (
	// NoCoverage means the baseline date is not spanned by the tree.
	NoCoverage Status = iota
	Unchanged
	Changed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	}
	return "no coverage"
}

// Change is a change detection result.
type Change struct {
	Status   Status  `json:"status"`
	Baseline float64 `json:"baseline,omitempty"`
	// Date is the boundary where the change was found.
	Date float64 `json:"date,omitempty"`
}

// Support tests if the population size changes by more than p
// percent within the window. The baseline is the size of the segment
// containing the window start; every following segment starting no
// later than the window end is compared against it.
func Support(s Skyline, w Window, p float64, dir Direction) Change {
	i := s.Find(w.Start)
	if i < 0 {
		return Change{Status: NoCoverage}
	}
	c := Change{Status: Unchanged, Baseline: s[i].Size}
	threshold := dir.Threshold(c.Baseline, p)
	for _, seg := range s[i+1:] {
		if seg.Start > w.End {
			break
		}
		if dir.Crosses(seg.Size, threshold) {
			c.Status = Changed
			c.Date = seg.Start
			break
		}
	}
	return c
}

// FirstIncrease finds the first segment with a population size more
// than p percent above the baseline.
//
// With FromPresent the baseline is the most recent segment, segments
// are scanned towards the root and the date is the end of the
// matching segment. With FromRoot the baseline is the oldest segment,
// segments are scanned towards the present and the date is the first
// coalescence of the matching group.
func FirstIncrease(s Skyline, p float64, from Origin) Change {
	if len(s) == 0 {
		return Change{Status: NoCoverage}
	}
	if from == FromRoot {
		c := Change{Status: Unchanged, Baseline: s[0].Size}
		threshold := Increase.Threshold(c.Baseline, p)
		for _, seg := range s[1:] {
			if seg.Size > threshold {
				c.Status = Changed
				c.Date = seg.First
				break
			}
		}
		return c
	}

	last := len(s) - 1
	c := Change{Status: Unchanged, Baseline: s[last].Size}
	threshold := Increase.Threshold(c.Baseline, p)
	for i := last - 1; i >= 0; i-- {
		if s[i].Size > threshold {
			c.Status = Changed
			c.Date = s[i].End
			break
		}
	}
	return c
}
