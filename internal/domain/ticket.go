package domain

import "time"

// Well-known status ids of the helpdesk status table.
const (
	StatusOpen       = 1
	StatusInProgress = 2
	StatusClosed     = 3
	StatusWaiting    = 4
	StatusEscalated  = 5
	StatusPending    = 6
	StatusScheduled  = 8
)

// Severity ids, ordered from most to least urgent.
const (
	SeverityCritical = 1
	SeverityHigh     = 2
	SeverityMedium   = 3
	SeverityLow      = 4
)

// Ticket is a row of the expanded ticket view: the ticket columns plus the
// labels of every referenced entity.
type Ticket struct {
	ID             int64
	Subject        string
	Body           string
	StatusID       int
	StatusLabel    *string
	SeverityID     *int
	PriorityLevel  *string
	SiteID         *int
	SiteLabel      *string
	AssetID        *int
	AssetLabel     *string
	CategoryID     *int
	CategoryLabel  *string
	ContactName    *string
	ContactEmail   *string
	AssignedName   *string
	AssignedEmail  *string
	VendorID       *int
	VendorName     *string
	Resolution     *string
	Version        int
	CreatedAt      time.Time
	ClosedAt       *time.Time
	LastModified   *time.Time
	LastModifiedBy *string
}

// Clone returns a deep copy so callers can mutate pointers freely.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.StatusLabel = cloneString(t.StatusLabel)
	c.SeverityID = cloneInt(t.SeverityID)
	c.PriorityLevel = cloneString(t.PriorityLevel)
	c.SiteID = cloneInt(t.SiteID)
	c.SiteLabel = cloneString(t.SiteLabel)
	c.AssetID = cloneInt(t.AssetID)
	c.AssetLabel = cloneString(t.AssetLabel)
	c.CategoryID = cloneInt(t.CategoryID)
	c.CategoryLabel = cloneString(t.CategoryLabel)
	c.ContactName = cloneString(t.ContactName)
	c.ContactEmail = cloneString(t.ContactEmail)
	c.AssignedName = cloneString(t.AssignedName)
	c.AssignedEmail = cloneString(t.AssignedEmail)
	c.VendorID = cloneInt(t.VendorID)
	c.VendorName = cloneString(t.VendorName)
	c.Resolution = cloneString(t.Resolution)
	c.LastModifiedBy = cloneString(t.LastModifiedBy)
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	if t.LastModified != nil {
		v := *t.LastModified
		c.LastModified = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
