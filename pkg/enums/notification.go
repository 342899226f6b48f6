package enums

import "fmt"

// NotificationAudience names who a settlement notification is addressed to.
type NotificationAudience string

const (
	NotificationAudienceBuyer NotificationAudience = "buyer"
	NotificationAudienceAdmin NotificationAudience = "admin"
)

var validNotificationAudiences = []NotificationAudience{
	NotificationAudienceBuyer,
	NotificationAudienceAdmin,
}

// IsValid checks whether the audience is known.
func (n NotificationAudience) IsValid() bool {
	for _, candidate := range validNotificationAudiences {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationAudience converts raw strings into NotificationAudience.
func ParseNotificationAudience(value string) (NotificationAudience, error) {
	for _, candidate := range validNotificationAudiences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification audience %q", value)
}
