package model

import "time"

type Reward struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Cost      int       `json:"cost"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

const DefaultRewardIcon = "gift"

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionRejected  RedemptionStatus = "rejected"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
)

// Redemption is the write model. Rows are created by the ledger only.
type Redemption struct {
	ID             string           `json:"id"`
	FamilyID       string           `json:"family_id"`
	KidID          string           `json:"kid_id"`
	RewardID       *string          `json:"reward_id"`
	PointsReserved int              `json:"points_reserved"`
	Status         RedemptionStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// RedemptionView is the read model shown on the rewards screen: a redemption
// joined with its reward and the requesting child's name.
type RedemptionView struct {
	Redemption
	RewardName string `json:"reward_name"`
	RewardIcon string `json:"reward_icon"`
	KidName    string `json:"kid_name"`
}
