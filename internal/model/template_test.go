package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateInstantiate(t *testing.T) {
	tmpl := NotificationTemplate{
		Type:            NotificationTypeMedicineReview,
		TitleTemplate:   "{{medicine}} reviewed",
		MessageTemplate: "Your {{medicine}} submission earned {{points}} points ({{unknown}})",
		Priority:        NotificationPriorityMedium,
		DefaultTarget:   TargetUser,
		LinkTemplate:    "/submissions/{{id}}",
	}

	n := tmpl.Instantiate(map[string]string{"medicine": "Paracetamol", "points": "40", "id": "s-1"})

	assert.Equal(t, "Paracetamol reviewed", n.Title)
	assert.Equal(t, "Your Paracetamol submission earned 40 points ({{unknown}})", n.Message)
	assert.Equal(t, NotificationStatusUnread, n.Status)
	assert.Equal(t, TargetUser, n.Target)
	require.NotNil(t, n.Link)
	assert.Equal(t, "/submissions/s-1", *n.Link)
}

func TestTemplateWithoutLink(t *testing.T) {
	n := NotificationTemplate{Type: NotificationTypeReminder, TitleTemplate: "t", MessageTemplate: "m"}.Instantiate(nil)
	assert.Nil(t, n.Link)
	assert.Equal(t, "t", n.Title)
}
