package applications_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/relief/internal/applications"
)

func TestFormDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*applications.FormData)
		wantErr bool
	}{
		{"valid", func(*applications.FormData) {}, false},
		{"compact emirates id", func(f *applications.FormData) { f.EmiratesID = "784199012345671" }, false},
		{"missing name", func(f *applications.FormData) { f.FullName = "  " }, true},
		{"wrong id prefix", func(f *applications.FormData) { f.EmiratesID = "123-1990-1234567-1" }, true},
		{"short id", func(f *applications.FormData) { f.EmiratesID = "784-1990" }, true},
		{"bad birth date", func(f *applications.FormData) { f.DateOfBirth = "14/05/1990" }, true},
		{"missing employment", func(f *applications.FormData) { f.EmploymentStatus = "" }, true},
		{"zero family size", func(f *applications.FormData) { f.FamilySize = 0 }, true},
		{"negative income", func(f *applications.FormData) {
			f.DeclaredIncome = decimal.NewNullDecimal(decimal.NewFromInt(-1))
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)

			err := form.Validate()
			if tt.wantErr {
				if !errors.Is(err, applications.ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCompactID(t *testing.T) {
	if got := applications.CompactID("784-1990-1234567-1"); got != "784199012345671" {
		t.Errorf("CompactID() = %q", got)
	}
}
