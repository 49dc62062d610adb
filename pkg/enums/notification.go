package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeNewOrderItems    NotificationType = "new_order_items"
	NotificationTypeOrderApproved    NotificationType = "order_approved"
	NotificationTypeOrderRejected    NotificationType = "order_rejected"
	NotificationTypePartialRejection NotificationType = "partial_rejection"
	NotificationTypeOrderCancelled   NotificationType = "order_cancelled"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeNewOrderItems,
	NotificationTypeOrderApproved,
	NotificationTypeOrderRejected,
	NotificationTypePartialRejection,
	NotificationTypeOrderCancelled,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
