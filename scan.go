package aegisbloom

// Classification is the per-document verdict of a membership check.
type Classification int

const (
	// NotPresent means the document is definitely not derived from the
	// encoded corpus, or matched too weakly to say otherwise.
	NotPresent Classification = iota
	// MaybePresent means a run of at least Threshold consecutive chunks
	// tested positive. With threshold t the chance of this happening by
	// accident is roughly fpRate^t.
	MaybePresent
)

// String implements fmt.Stringer using the report vocabulary.
func (c Classification) String() string {
	if c == MaybePresent {
		return "MAYBE_PRESENT"
	}
	return "NOT_PRESENT"
}

// MatchRun is a maximal contiguous range of query chunk indices that all
// tested positive. Runs are derived per check call, never stored.
type MatchRun struct {
	// Start is the chunk index of the first hit in the run.
	Start int
	// Length is the number of consecutive hits.
	Length int
}

// Result is the outcome of checking one document against a filter.
type Result struct {
	// Classification is MaybePresent iff LongestRun >= the filter threshold.
	Classification Classification
	// LongestRun is the length of the longest consecutive-hit run.
	LongestRun int
	// Chunks is the number of chunks the document produced.
	Chunks int
	// Runs lists every maximal consecutive-hit run in chunk order.
	Runs []MatchRun
}

// runScanner folds an ordered stream of per-chunk test results into match
// runs. A single isolated hit is statistically explainable by the false
// positive rate alone and must never justify an accusation on its own; only
// a run of threshold consecutive hits upgrades the classification.
//
// Feeding results out of chunk order would corrupt the runs, so the scanner
// is always driven by the (sequential) chunk index.
type runScanner struct {
	threshold int

	chunks   int
	current  int
	curStart int
	longest  int
	runs     []MatchRun
}

func newRunScanner(threshold uint32) *runScanner {
	return &runScanner{threshold: int(threshold)}
}

func (s *runScanner) feed(index int, hit bool) {
	s.chunks++
	if hit {
		if s.current == 0 {
			s.curStart = index
		}
		s.current++
		if s.current > s.longest {
			s.longest = s.current
		}
		return
	}
	s.endRun()
}

func (s *runScanner) endRun() {
	if s.current > 0 {
		s.runs = append(s.runs, MatchRun{Start: s.curStart, Length: s.current})
	}
	s.current = 0
}

func (s *runScanner) result() Result {
	s.endRun()
	r := Result{
		LongestRun: s.longest,
		Chunks:     s.chunks,
		Runs:       s.runs,
	}
	// A document with fewer than threshold chunks can never reach
	// MaybePresent; no special case is needed, the run simply stays short.
	if s.longest >= s.threshold {
		r.Classification = MaybePresent
	}
	return r
}
