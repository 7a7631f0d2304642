package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medreturn-api/pkg/validator"
)

type NotificationType string

const (
	NotificationTypeMedicineSubmission NotificationType = "medicine_submission"
	NotificationTypeMedicineReview     NotificationType = "medicine_review"
	NotificationTypeVoucherUsage       NotificationType = "voucher_usage"
	NotificationTypeFeedback           NotificationType = "feedback"
	NotificationTypeComment            NotificationType = "comment"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
	NotificationTypeReminder           NotificationType = "reminder"
	NotificationTypeChatbot            NotificationType = "chatbot"
)

type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityLow    NotificationPriority = "low"
)

// Audience targets. A Notification target may also hold a literal user ID.
const (
	TargetUser         = "user"
	TargetAdmin        = "admin"
	TargetCollaborator = "collaborator"
	TargetSystem       = "system"
)

type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "unread"
	NotificationStatusRead     NotificationStatus = "read"
	NotificationStatusArchived NotificationStatus = "archived"
)

type Notification struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	Type        NotificationType     `json:"type" db:"type" validate:"required,oneof=medicine_submission medicine_review voucher_usage feedback comment system_announcement reminder chatbot"`
	Title       string               `json:"title" db:"title" validate:"required,max=200"`
	Message     string               `json:"message" db:"message" validate:"required,max=2000"`
	Priority    NotificationPriority `json:"priority" db:"priority" validate:"required,oneof=high medium low"`
	Target      string               `json:"target" db:"target" validate:"required,notification_target"`
	RecipientID *uuid.UUID           `json:"recipientId,omitempty" db:"recipient_id"`
	SenderID    *uuid.UUID           `json:"senderId,omitempty" db:"sender_id"`
	Status      NotificationStatus   `json:"status" db:"status"`
	Link        *string              `json:"link,omitempty" db:"link" validate:"omitempty,max=500"`
	Metadata    Metadata             `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time            `json:"createdAt" db:"created_at"`
	ReadAt      *time.Time           `json:"readAt,omitempty" db:"read_at"`
}

// IsAudienceTarget reports whether target names an audience rather than a user.
func IsAudienceTarget(target string) bool {
	switch target {
	case TargetUser, TargetAdmin, TargetCollaborator, TargetSystem:
		return true
	}
	return false
}

// CheckAddressing rejects a recipient ID paired with a target that addresses
// someone else: another audience or a different literal user ID.
func (n *Notification) CheckAddressing() error {
	if n.RecipientID == nil || n.Target == TargetUser {
		return nil
	}
	if IsAudienceTarget(n.Target) {
		return fmt.Errorf("recipientId cannot be combined with the %q audience", n.Target)
	}
	if id, err := uuid.Parse(n.Target); err == nil && id != *n.RecipientID {
		return fmt.Errorf("recipientId does not match target")
	}
	return nil
}

// TargetTag is the validation tag that checks Notification.Target with ValidTarget.
const TargetTag = "notification_target"

// TargetRule is the validation rule registered under TargetTag.
func TargetRule() validator.Rule {
	return validator.Rule{Tag: TargetTag, Fn: ValidTarget}
}

// ValidTarget accepts an audience name or a literal user ID.
func ValidTarget(target string) bool {
	if IsAudienceTarget(target) {
		return true
	}
	_, err := uuid.Parse(target)
	return err == nil
}

// Recipient identifies whose notifications an operation may see.
type Recipient struct {
	UserID uuid.UUID
	Role   string
}

// VisibleTo reports whether recipient may see n: it is addressed to them
// directly or broadcast to their role's audience.
func (n *Notification) VisibleTo(recipient Recipient) bool {
	if n.RecipientID != nil && *n.RecipientID == recipient.UserID {
		return true
	}
	if n.Target == recipient.UserID.String() {
		return true
	}
	return n.RecipientID == nil && n.Target == AudienceForRole(recipient.Role)
}

type NotificationFilter struct {
	Status NotificationStatus
	Limit  int
}

// NotificationEvent is the payload published for every stored notification.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"payload"`
}

const NotificationEventCreated = "notification.created"
