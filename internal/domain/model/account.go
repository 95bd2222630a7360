package model

import (
	"time"

	"ai-credits-billing/internal/domain"
)

type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "Free"
	TierExplorer SubscriptionTier = "Explorer"
	TierInsight  SubscriptionTier = "Insight"
	TierPrime    SubscriptionTier = "Prime"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
)

// BaselineTokenBalance is granted to accounts created lazily from a
// completion event that references an unknown user.
const BaselineTokenBalance = 5

// Account is the per-user billing record. It is keyed by the opaque
// user identifier and mutated only by the event reconciler.
type Account struct {
	UserID             string
	Email              string
	TokenBalance       int64
	SubscriptionTier   SubscriptionTier
	SubscriptionStatus SubscriptionStatus
	SubscriptionRef    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewAccount constructs an account with the baseline token grant.
func NewAccount(userID, email string) (*Account, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Account{
		UserID:             userID,
		Email:              email,
		TokenBalance:       BaselineTokenBalance,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: SubscriptionStatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Credit adds tokens to the balance. Negative amounts are rejected so the
// tokenBalance >= 0 invariant cannot be broken through this path.
func (a *Account) Credit(tokens int64) error {
	if tokens < 0 {
		return domain.ErrInvalidArgument
	}
	a.TokenBalance += tokens
	a.UpdatedAt = time.Now()
	return nil
}

// ActivateSubscription records an active subscription on the account.
func (a *Account) ActivateSubscription(tier SubscriptionTier, ref string) {
	a.SubscriptionTier = tier
	a.SubscriptionStatus = SubscriptionStatusActive
	if ref != "" {
		a.SubscriptionRef = &ref
	}
	a.UpdatedAt = time.Now()
}

func (a *Account) IsZero() bool { return a == nil || a.UserID == "" }
