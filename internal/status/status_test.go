package status_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/relief/internal/status"
)

func TestNextHappyPath(t *testing.T) {
	steps := []struct {
		event status.Event
		want  status.State
	}{
		{status.SubmitForm, status.FormSubmitted},
		{status.UploadDocuments, status.DocumentsUploaded},
		{status.BeginProcessing, status.ScanningDocuments},
		{status.CompleteExtraction, status.OCRCompleted},
		{status.AnalyzeIncome, status.AnalyzingIncome},
		{status.AnalyzeIdentity, status.AnalyzingIdentity},
		{status.CompleteAnalysis, status.AnalysisCompleted},
		{status.BeginDecision, status.MakingDecision},
		{status.CompleteDecision, status.DecisionCompleted},
		{status.Approve, status.Approved},
	}

	current := status.Draft
	progress := 0
	for _, step := range steps {
		next, err := status.Next(current, step.event)
		if err != nil {
			t.Fatalf("Next(%s, %s) error: %v", current, step.event, err)
		}
		if next != step.want {
			t.Fatalf("Next(%s, %s) = %s, want %s", current, step.event, next, step.want)
		}

		p := status.Advance(progress, next)
		if p < progress {
			t.Errorf("progress decreased from %d to %d entering %s", progress, p, next)
		}
		progress = p
		current = next
	}

	if progress != 100 {
		t.Errorf("final progress = %d, want 100", progress)
	}
}

func TestNextInvalid(t *testing.T) {
	tests := []struct {
		name  string
		from  status.State
		event status.Event
	}{
		{"upload after processing", status.OCRCompleted, status.UploadDocuments},
		{"upload when approved", status.Approved, status.UploadDocuments},
		{"reset from draft", status.Draft, status.ResetDocuments},
		{"reset after decision", status.MakingDecision, status.ResetForm},
		{"cancel approved", status.Approved, status.Cancel},
		{"discard cancelled", status.Cancelled, status.Discard},
		{"approve before decision", status.AnalysisCompleted, status.Approve},
		{"override in-flight", status.ScanningDocuments, status.OverrideApprove},
		{"begin from rejected", status.Rejected, status.BeginProcessing},
		{"unknown event", status.Draft, status.Event("teleport")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := status.Next(tt.from, tt.event)
			if !errors.Is(err, status.ErrInvalidState) {
				t.Fatalf("error = %v, want ErrInvalidState", err)
			}

			var ise *status.InvalidStateError
			if !errors.As(err, &ise) {
				t.Fatal("expected *InvalidStateError")
			}
			if ise.Current != tt.from || ise.Action != tt.event {
				t.Errorf("error context = (%s, %s), want (%s, %s)", ise.Current, ise.Action, tt.from, tt.event)
			}
			if next != tt.from {
				t.Errorf("state changed on failure: %s", next)
			}
		})
	}
}

func TestBeginProcessingWhileProcessing(t *testing.T) {
	for _, st := range status.All() {
		if !st.Processing() {
			continue
		}
		for _, ev := range []status.Event{status.BeginProcessing, status.RetryProcessing} {
			_, err := status.Next(st, ev)
			if !errors.Is(err, status.ErrAlreadyProcessing) {
				t.Errorf("Next(%s, %s) error = %v, want ErrAlreadyProcessing", st, ev, err)
			}
		}
	}
}

func TestBeginProcessingTargets(t *testing.T) {
	tests := []struct {
		from status.State
		want status.State
	}{
		{status.FormSubmitted, status.ScanningDocuments},
		{status.DocumentsUploaded, status.ScanningDocuments},
		{status.PartialSuccess, status.ScanningDocuments},
		{status.NeedsReview, status.AnalyzingIncome},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, err := status.Next(tt.from, status.BeginProcessing)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRetryProcessingFromDecided(t *testing.T) {
	for _, st := range []status.State{status.Approved, status.Rejected, status.ManualReviewRequired} {
		got, err := status.Next(st, status.RetryProcessing)
		if err != nil {
			t.Fatalf("retry from %s: %v", st, err)
		}
		if got != status.ScanningDocuments {
			t.Errorf("retry from %s = %s, want scanning_documents", st, got)
		}
	}

	if _, err := status.Next(status.Cancelled, status.RetryProcessing); !errors.Is(err, status.ErrInvalidState) {
		t.Errorf("retry from cancelled error = %v, want ErrInvalidState", err)
	}
}

func TestFailOnlyFromProcessing(t *testing.T) {
	for _, st := range status.All() {
		got, err := status.Next(st, status.Fail)
		if st.Processing() {
			if err != nil || got != status.PartialSuccess {
				t.Errorf("Fail from %s = (%s, %v), want partial_success", st, got, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("Fail from %s should be rejected", st)
		}
	}
}

func TestTerminalAndActive(t *testing.T) {
	terminal := map[status.State]bool{
		status.Approved:             true,
		status.Rejected:             true,
		status.NeedsReview:          true,
		status.ManualReviewRequired: true,
		status.Cancelled:            true,
		status.Discarded:            true,
	}

	for _, st := range status.All() {
		if st.Terminal() != terminal[st] {
			t.Errorf("%s.Terminal() = %v, want %v", st, st.Terminal(), terminal[st])
		}
		if st.Active() == st.Terminal() {
			t.Errorf("%s: Active and Terminal must differ", st)
		}
	}

	if got := len(status.TerminalStates()); got != len(terminal) {
		t.Errorf("TerminalStates() len = %d, want %d", got, len(terminal))
	}
}

func TestAdvanceKeepsProgressOnSideStates(t *testing.T) {
	if got := status.Advance(60, status.PartialSuccess); got != 60 {
		t.Errorf("Advance(60, partial_success) = %d, want 60", got)
	}
	if got := status.Advance(90, status.ScanningDocuments); got != 90 {
		t.Errorf("Advance(90, scanning_documents) = %d, want 90", got)
	}
	if got := status.Advance(30, status.OCRCompleted); got != 50 {
		t.Errorf("Advance(30, ocr_completed) = %d, want 50", got)
	}
}

func TestParse(t *testing.T) {
	if st, ok := status.Parse("needs_review"); !ok || st != status.NeedsReview {
		t.Errorf("Parse(needs_review) = (%s, %v)", st, ok)
	}
	if _, ok := status.Parse("pending"); ok {
		t.Error("Parse(pending) should fail")
	}
}

func TestAllowed(t *testing.T) {
	got := status.Allowed(status.FormSubmitted)
	want := []status.Event{status.UploadDocuments, status.BeginProcessing, status.RetryProcessing, status.Cancel, status.Discard}

	if len(got) != len(want) {
		t.Fatalf("Allowed(form_submitted) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Allowed[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
