package documents

// Structured field names produced by vision extraction.
const (
	FieldFullName       = "full_name"
	FieldIDNumber       = "id_number"
	FieldDateOfBirth    = "date_of_birth"
	FieldNationality    = "nationality"
	FieldExpiryDate     = "expiry_date"
	FieldAccountHolder  = "account_holder"
	FieldAccountNumber  = "account_number"
	FieldBankName       = "bank_name"
	FieldMonthlyIncome  = "monthly_income"
	FieldAccountBalance = "account_balance"
)

// ExpectedFields lists the vision fields requested for each document type.
func ExpectedFields(t Type) []string {
	switch t {
	case EmiratesID:
		return []string{FieldFullName, FieldIDNumber, FieldDateOfBirth, FieldNationality, FieldExpiryDate}
	case BankStatement:
		return []string{FieldAccountHolder, FieldAccountNumber, FieldBankName, FieldMonthlyIncome, FieldAccountBalance}
	}
	return nil
}

// StringField returns a non-empty string field from vision output.
func (v *Vision) StringField(name string) (string, bool) {
	if v == nil || v.Fields == nil {
		return "", false
	}
	s, ok := v.Fields[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
