package domain

import "time"

type AccountStatus string

const (
	AccountStatusInUse        AccountStatus = "IN_USE"
	AccountStatusUnregistered AccountStatus = "UNREGISTERED"
)

// MaxAccountsPerOwner caps how many accounts a single owner may hold.
const MaxAccountsPerOwner = 10

// Account balances are kept in the smallest currency unit. The account number
// is a string on purpose: leading zeros and non-digit characters are allowed,
// so it is never treated as a number once allocated.
type Account struct {
	ID             string
	OwnerID        int64
	Number         string
	Status         AccountStatus
	Balance        int64
	RegisteredAt   time.Time
	UnregisteredAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
