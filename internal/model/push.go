package model

import "time"

// Notification kinds sent over web push.
const (
	NotifRedemptionRequested = "redemption_requested"
	NotifRedemptionDecided   = "redemption_decided"
)

type PushSubscription struct {
	ID         string    `json:"id"`
	FamilyID   string    `json:"family_id"`
	ProfileID  string    `json:"profile_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
