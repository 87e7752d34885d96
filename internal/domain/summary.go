package domain

// Summary reports the outcome of one crawl run.
type Summary struct {
	Done        int
	Failed      int
	Empty       int
	Skipped     int
	Interrupted int
	Exhausted   int

	// Reasons maps link hash to the recorded failure reason.
	Reasons map[string]string
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{Reasons: make(map[string]string)}
}

// Add merges o into s.
func (s *Summary) Add(o Summary) {
	s.Done += o.Done
	s.Failed += o.Failed
	s.Empty += o.Empty
	s.Skipped += o.Skipped
	s.Interrupted += o.Interrupted
	s.Exhausted += o.Exhausted
	if s.Reasons == nil {
		s.Reasons = make(map[string]string)
	}
	for k, v := range o.Reasons {
		s.Reasons[k] = v
	}
}
