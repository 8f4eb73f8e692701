package status

// Event is an action that requests a state change.
type Event string

const (
	SubmitForm         Event = "submit_form"
	UploadDocuments    Event = "upload_documents"
	BeginProcessing    Event = "begin_processing"
	RetryProcessing    Event = "retry_processing"
	CompleteExtraction Event = "complete_extraction"
	AnalyzeIncome      Event = "analyze_income"
	AnalyzeIdentity    Event = "analyze_identity"
	CompleteAnalysis   Event = "complete_analysis"
	BeginDecision      Event = "begin_decision"
	CompleteDecision   Event = "complete_decision"
	Approve            Event = "approve"
	Reject             Event = "reject"
	Refer              Event = "refer"
	Fail               Event = "fail"
	ResetDocuments     Event = "reset_to_documents"
	ResetForm          Event = "reset_to_form"
	RequireReview      Event = "require_manual_review"
	OverrideApprove    Event = "override_approve"
	OverrideReject     Event = "override_reject"
	OverrideRefer      Event = "override_refer"
	Cancel             Event = "cancel"
	Discard            Event = "discard"
)

type rule struct {
	from func(State) bool
	to   func(State) State
}

func in(states ...State) func(State) bool {
	return func(s State) bool {
		for _, st := range states {
			if s == st {
				return true
			}
		}
		return false
	}
}

func always(to State) func(State) State {
	return func(State) State { return to }
}

var reviewable = in(NeedsReview, ManualReviewRequired, Approved, Rejected)

var rules = map[Event]rule{
	SubmitForm:      {in(Draft), always(FormSubmitted)},
	UploadDocuments: {in(Draft, FormSubmitted), always(DocumentsUploaded)},
	BeginProcessing: {
		in(FormSubmitted, DocumentsUploaded, NeedsReview, PartialSuccess),
		func(s State) State {
			if s == NeedsReview {
				return AnalyzingIncome
			}
			return ScanningDocuments
		},
	},
	RetryProcessing: {
		func(s State) bool { return !s.Closed() && s != Draft },
		always(ScanningDocuments),
	},
	CompleteExtraction: {in(ScanningDocuments), always(OCRCompleted)},
	AnalyzeIncome:      {in(OCRCompleted), always(AnalyzingIncome)},
	AnalyzeIdentity:    {in(AnalyzingIncome), always(AnalyzingIdentity)},
	CompleteAnalysis:   {in(AnalyzingIdentity), always(AnalysisCompleted)},
	BeginDecision:      {in(AnalysisCompleted), always(MakingDecision)},
	CompleteDecision:   {in(MakingDecision), always(DecisionCompleted)},
	Approve:            {in(DecisionCompleted), always(Approved)},
	Reject:             {in(DecisionCompleted), always(Rejected)},
	Refer:              {in(DecisionCompleted), always(NeedsReview)},
	Fail:               {State.Processing, always(PartialSuccess)},
	ResetDocuments:     {State.Resettable, always(DocumentsUploaded)},
	ResetForm:          {State.Resettable, always(FormSubmitted)},
	RequireReview:      {in(NeedsReview, Approved, Rejected, PartialSuccess), always(ManualReviewRequired)},
	OverrideApprove:    {reviewable, always(Approved)},
	OverrideReject:     {reviewable, always(Rejected)},
	OverrideRefer:      {reviewable, always(NeedsReview)},
	Cancel:             {State.Active, always(Cancelled)},
	Discard:            {State.Active, always(Discarded)},
}

// Next returns the state reached by applying ev in from.
// Processing-start events in an in-flight state yield ErrAlreadyProcessing;
// every other illegal combination yields an *InvalidStateError.
func Next(from State, ev Event) (State, error) {
	r, ok := rules[ev]
	if !ok {
		return from, &InvalidStateError{Current: from, Action: ev}
	}

	if (ev == BeginProcessing || ev == RetryProcessing) && from.Processing() {
		return from, &AlreadyProcessingError{Current: from}
	}

	if !r.from(from) {
		return from, &InvalidStateError{Current: from, Action: ev}
	}

	return r.to(from), nil
}

// Allowed lists the events accepted in from, in declaration order.
func Allowed(from State) []Event {
	order := []Event{
		SubmitForm, UploadDocuments, BeginProcessing, RetryProcessing,
		CompleteExtraction, AnalyzeIncome, AnalyzeIdentity, CompleteAnalysis,
		BeginDecision, CompleteDecision, Approve, Reject, Refer, Fail,
		ResetDocuments, ResetForm, RequireReview, OverrideApprove,
		OverrideReject, OverrideRefer, Cancel, Discard,
	}

	out := make([]Event, 0)
	for _, ev := range order {
		if _, err := Next(from, ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}
