package model

import (
	"strings"
)

// NotificationTemplate describes a reusable notification. Title, message and
// link templates use {{key}} placeholders.
type NotificationTemplate struct {
	ID              string               `json:"id"`
	Type            NotificationType     `json:"type"`
	TitleTemplate   string               `json:"titleTemplate"`
	MessageTemplate string               `json:"messageTemplate"`
	Priority        NotificationPriority `json:"priority"`
	DefaultTarget   string               `json:"defaultTarget"`
	LinkTemplate    string               `json:"linkTemplate,omitempty"`
}

// Instantiate builds an unread notification from the template. Unknown
// placeholders are left as-is.
func (t NotificationTemplate) Instantiate(vars map[string]string) *Notification {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)

	n := &Notification{
		Type:     t.Type,
		Title:    r.Replace(t.TitleTemplate),
		Message:  r.Replace(t.MessageTemplate),
		Priority: t.Priority,
		Target:   t.DefaultTarget,
		Status:   NotificationStatusUnread,
	}
	if t.LinkTemplate != "" {
		link := r.Replace(t.LinkTemplate)
		n.Link = &link
	}
	return n
}
