package entity

import "github.com/google/uuid"

// AccountType discriminates personal and company profiles.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountCompany  AccountType = "company"
)

// Profile is the subset of a `profiles` row the author resolver reads.
// Rows are created by the platform at signup; this service never writes them.
type Profile struct {
	UserID      uuid.UUID   `db:"user_id"`
	AccountType AccountType `db:"account_type"`
	CompanyName *string     `db:"company_name"`
}

// DisplayName returns the company name, or fallback when it is empty.
func (p *Profile) DisplayName(fallback string) string {
	if p == nil || p.CompanyName == nil || *p.CompanyName == "" {
		return fallback
	}
	return *p.CompanyName
}
