package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Party is who asks for a transition, relative to the order.
type Party string

const (
	PartyFarmer   Party = "farmer"
	PartyCustomer Party = "customer"
)

// validNext lists, per current status, the allowed targets and the parties
// that may request them. Forward edges advance one step; cancelled is the
// only edge that skips ahead.
var validNext = map[Status]map[Status][]Party{
	StatusPending: {
		StatusConfirmed: {PartyFarmer},
		StatusCancelled: {PartyFarmer, PartyCustomer},
	},
	StatusConfirmed: {
		StatusPreparing: {PartyFarmer},
		StatusCancelled: {PartyFarmer},
	},
	StatusPreparing: {
		StatusReady:     {PartyFarmer},
		StatusCancelled: {PartyFarmer},
	},
	StatusReady: {
		StatusDelivered: {PartyFarmer},
		StatusCancelled: {PartyFarmer},
	},
	StatusDelivered: {
		StatusCompleted: {PartyFarmer},
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// IsEdge reports whether from -> to exists for any party.
func IsEdge(from, to Status) bool {
	_, ok := validNext[from][to]
	return ok
}

func CanTransition(from, to Status, by Party) bool {
	for _, p := range validNext[from][to] {
		if p == by {
			return true
		}
	}
	return false
}

// PartyOf resolves the acting user's relation to o; ok is false for outsiders.
func PartyOf(o Order, userID string) (Party, bool) {
	switch userID {
	case o.FarmerID:
		return PartyFarmer, true
	case o.CustomerID:
		return PartyCustomer, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Tab groups orders the way the order list shows them.
type Tab string

const (
	TabActive    Tab = "active"
	TabCompleted Tab = "completed"
	TabCancelled Tab = "cancelled"
	TabAll       Tab = "all"
)

func (t Tab) Includes(s Status) bool {
	switch t {
	case TabActive:
		return s != StatusDelivered && s != StatusCompleted && s != StatusCancelled
	case TabCompleted:
		return s == StatusDelivered || s == StatusCompleted
	case TabCancelled:
		return s == StatusCancelled
	default:
		return true
	}
}
