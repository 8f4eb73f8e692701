// Package status defines the application workflow states, the events that
// move an application between them, and the transition table.
package status

// State is the lifecycle position of an application.
type State string

const (
	Draft                State = "draft"
	FormSubmitted        State = "form_submitted"
	DocumentsUploaded    State = "documents_uploaded"
	ScanningDocuments    State = "scanning_documents"
	OCRCompleted         State = "ocr_completed"
	AnalyzingIncome      State = "analyzing_income"
	AnalyzingIdentity    State = "analyzing_identity"
	AnalysisCompleted    State = "analysis_completed"
	MakingDecision       State = "making_decision"
	DecisionCompleted    State = "decision_completed"
	Approved             State = "approved"
	Rejected             State = "rejected"
	NeedsReview          State = "needs_review"
	PartialSuccess       State = "partial_success"
	ManualReviewRequired State = "manual_review_required"
	Cancelled            State = "cancelled"
	Discarded            State = "discarded"
)

var all = []State{
	Draft, FormSubmitted, DocumentsUploaded, ScanningDocuments, OCRCompleted,
	AnalyzingIncome, AnalyzingIdentity, AnalysisCompleted, MakingDecision,
	DecisionCompleted, Approved, Rejected, NeedsReview, PartialSuccess,
	ManualReviewRequired, Cancelled, Discarded,
}

var progress = map[State]int{
	Draft:                0,
	FormSubmitted:        20,
	DocumentsUploaded:    30,
	ScanningDocuments:    40,
	OCRCompleted:         50,
	AnalyzingIncome:      60,
	AnalyzingIdentity:    70,
	AnalysisCompleted:    80,
	MakingDecision:       90,
	DecisionCompleted:    95,
	Approved:             100,
	Rejected:             100,
	NeedsReview:          100,
	ManualReviewRequired: 100,
}

// All returns every state in pipeline order.
func All() []State {
	out := make([]State, len(all))
	copy(out, all)
	return out
}

// Parse validates s against the closed set of states.
func Parse(s string) (State, bool) {
	for _, st := range all {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Progress returns the nominal completion percentage of s.
// Side states (partial_success, cancelled, discarded) report -1 and keep
// whatever progress the application had reached.
func (s State) Progress() int {
	if p, ok := progress[s]; ok {
		return p
	}
	return -1
}

// Advance computes the progress stored after entering next from a position
// with progress current. Progress never decreases on forward movement.
func Advance(current int, next State) int {
	p := next.Progress()
	if p < 0 {
		return current
	}
	return max(current, p)
}

// Processing reports whether an automated pipeline stage owns the application.
func (s State) Processing() bool {
	switch s {
	case ScanningDocuments, OCRCompleted, AnalyzingIncome, AnalyzingIdentity,
		AnalysisCompleted, MakingDecision, DecisionCompleted:
		return true
	}
	return false
}

// Resettable reports whether s may be rewound to an editable state.
func (s State) Resettable() bool {
	switch s {
	case ScanningDocuments, OCRCompleted, AnalyzingIncome, AnalyzingIdentity, AnalysisCompleted:
		return true
	}
	return false
}

// Decided reports whether s carries a decision outcome.
func (s State) Decided() bool {
	switch s {
	case Approved, Rejected, NeedsReview, ManualReviewRequired:
		return true
	}
	return false
}

// Closed reports whether the application was withdrawn by its owner.
func (s State) Closed() bool {
	return s == Cancelled || s == Discarded
}

// Terminal reports whether s ends the active life of an application.
// An owner may start a new application once the previous one is terminal.
func (s State) Terminal() bool {
	return s.Decided() || s.Closed()
}

// Active is the complement of Terminal.
func (s State) Active() bool {
	return !s.Terminal()
}

// TerminalStates returns every state that releases the one-active-per-owner slot.
func TerminalStates() []State {
	out := make([]State, 0, 6)
	for _, st := range all {
		if st.Terminal() {
			out = append(out, st)
		}
	}
	return out
}
