package domain

import "time"

// User is an account holding an energy balance.
type User struct {
	ID            string
	EnergyBalance int // cached sum of the user's ledger entries
	IsSubscriber  bool
	LastCheckin   *time.Time
	LastShare     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RewardMultiplier returns the factor applied to earning actions.
func (u User) RewardMultiplier(subscriberMultiplier int) int {
	if u.IsSubscriber && subscriberMultiplier > 0 {
		return subscriberMultiplier
	}
	return 1
}
