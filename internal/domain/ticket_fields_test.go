package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketSetField(t *testing.T) {
	site := 4
	ticket := &Ticket{Subject: "old"}

	require.NoError(t, ticket.SetField("Subject", "new"))
	require.NoError(t, ticket.SetField("Site_ID", &site))
	require.NoError(t, ticket.SetField("Resolution", (*string)(nil)))

	got, ok := ticket.FieldValue("Site_ID")
	require.True(t, ok)
	assert.Equal(t, &site, got)
	assert.Equal(t, "new", ticket.Subject)

	assert.Error(t, ticket.SetField("Ticket_ID", int64(1)))
	assert.Error(t, ticket.SetField("Ticket_Status_ID", "open"))
}

func TestTicketCloneIsDeep(t *testing.T) {
	name := "Dana"
	orig := &Ticket{ContactName: &name}
	clone := orig.Clone()
	*clone.ContactName = "Eli"
	assert.Equal(t, "Dana", *orig.ContactName)
}
