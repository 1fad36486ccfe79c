// Package crm holds the CRM user records that briefs are generated from.
package crm

import "time"

// Status is the engagement state of a CRM user.
type Status string

const (
	StatusSignedUp   Status = "signed_up"
	StatusNotEngaged Status = "not_engaged"
)

// Source is the CRM a user was imported from.
type Source string

const (
	SourceSalesforce Source = "salesforce"
	SourceHubSpot    Source = "hubspot"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusSignedUp, StatusNotEngaged:
		return true
	default:
		return false
	}
}

// ValidSource reports whether s is a CRM that can be connected.
func ValidSource(s string) bool {
	switch Source(s) {
	case SourceSalesforce, SourceHubSpot:
		return true
	default:
		return false
	}
}

// User is one CRM record. Email is the natural key.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Company     string     `json:"company"`
	CompanySize string     `json:"company_size"`
	Role        string     `json:"role"`
	Industry    string     `json:"industry"`
	Source      Source     `json:"source"`
	Status      Status     `json:"status"`
	SignedUpAt  *time.Time `json:"signed_up_at"`
	LastActive  *time.Time `json:"last_active"`
	CreatedAt   time.Time  `json:"created_at"`
}
