package model

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a request from a company for a wholesale account.
type Application struct {
	ID             int64             `json:"id"`
	CompanyName    string            `json:"company_name"`
	TaxID          string            `json:"tax_id"`
	ContactName    string            `json:"contact_name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	Message        string            `json:"message,omitempty"`
	Status         ApplicationStatus `json:"status"`
	ReviewedBy     string            `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time        `json:"reviewed_at,omitempty"`
	RejectReason   string            `json:"reject_reason,omitempty"`
	OrganizationID *int64            `json:"organization_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
