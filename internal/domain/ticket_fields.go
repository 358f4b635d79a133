package domain

import (
	"fmt"
	"time"
)

// FieldValue returns the typed value of a writable ticket field: string for
// Subject and Ticket_Body, int for Ticket_Status_ID, and a pointer for every
// nullable column.
func (t *Ticket) FieldValue(field string) (any, bool) {
	switch field {
	case "Subject":
		return t.Subject, true
	case "Ticket_Body":
		return t.Body, true
	case "Ticket_Status_ID":
		return t.StatusID, true
	case "Severity_ID":
		return t.SeverityID, true
	case "Site_ID":
		return t.SiteID, true
	case "Asset_ID":
		return t.AssetID, true
	case "Ticket_Category_ID":
		return t.CategoryID, true
	case "Assigned_Vendor_ID":
		return t.VendorID, true
	case "Ticket_Contact_Name":
		return t.ContactName, true
	case "Ticket_Contact_Email":
		return t.ContactEmail, true
	case "Assigned_Name":
		return t.AssignedName, true
	case "Assigned_Email":
		return t.AssignedEmail, true
	case "Resolution":
		return t.Resolution, true
	case "Closed_Date":
		return t.ClosedAt, true
	}
	return nil, false
}

// SetField assigns a value of the type FieldValue reports for field.
func (t *Ticket) SetField(field string, v any) error {
	var ok bool
	switch field {
	case "Subject":
		t.Subject, ok = v.(string)
	case "Ticket_Body":
		t.Body, ok = v.(string)
	case "Ticket_Status_ID":
		t.StatusID, ok = v.(int)
	case "Severity_ID":
		t.SeverityID, ok = v.(*int)
	case "Site_ID":
		t.SiteID, ok = v.(*int)
	case "Asset_ID":
		t.AssetID, ok = v.(*int)
	case "Ticket_Category_ID":
		t.CategoryID, ok = v.(*int)
	case "Assigned_Vendor_ID":
		t.VendorID, ok = v.(*int)
	case "Ticket_Contact_Name":
		t.ContactName, ok = v.(*string)
	case "Ticket_Contact_Email":
		t.ContactEmail, ok = v.(*string)
	case "Assigned_Name":
		t.AssignedName, ok = v.(*string)
	case "Assigned_Email":
		t.AssignedEmail, ok = v.(*string)
	case "Resolution":
		t.Resolution, ok = v.(*string)
	case "Closed_Date":
		t.ClosedAt, ok = v.(*time.Time)
	default:
		return fmt.Errorf("field %s is not writable", field)
	}
	if !ok {
		return fmt.Errorf("field %s: unexpected value type %T", field, v)
	}
	return nil
}
