package reconcile

// Outcome classifies how one delta was handled.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Item is the per-delta result of a reconciliation run.
type Item struct {
	Entity  string  `json:"entity"`
	Kind    string  `json:"kind"`
	Outcome Outcome `json:"outcome"`
	// Reason explains a skip or failure.
	Reason string `json:"reason,omitempty"`
	// Changes describes the mutations applied, one line each.
	Changes []string `json:"changes,omitempty"`
}

// Report summarizes one reconciliation run over a chapter's deltas.
type Report struct {
	ChapterNumber int    `json:"chapter_number"`
	Items         []Item `json:"items"`
	Applied       int    `json:"applied"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
}

func (r *Report) record(item Item) {
	switch item.Outcome {
	case OutcomeApplied:
		r.Applied++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Items = append(r.Items, item)
}
