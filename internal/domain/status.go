package domain

// StatusCode enumerates the stable string identifiers for order lifecycle stages.
// Codes are persisted in movement history and must never be renumbered or renamed.
type StatusCode string

const (
	// StatusPending indicates the order has been created and no items were picked yet.
	StatusPending StatusCode = "order_pending"
	// StatusWaitingBurgers indicates the order is collecting burger items.
	StatusWaitingBurgers StatusCode = "order_waiting_burgers"
	// StatusWaitingSides indicates the order is collecting side-dish items.
	StatusWaitingSides StatusCode = "order_waiting_sides"
	// StatusWaitingDrinks indicates the order is collecting drink items.
	StatusWaitingDrinks StatusCode = "order_waiting_drinks"
	// StatusWaitingDesserts indicates the order is collecting dessert items.
	StatusWaitingDesserts StatusCode = "order_waiting_desserts"
	// StatusReadyToPlace indicates item collection is done and the customer can confirm.
	StatusReadyToPlace StatusCode = "order_ready_to_place"
	// StatusPlaced indicates the customer has confirmed the order.
	StatusPlaced StatusCode = "order_placed"
	// StatusPaid indicates payment for the order has been confirmed.
	StatusPaid StatusCode = "order_paid"
	// StatusPreparing indicates the kitchen is preparing the order.
	StatusPreparing StatusCode = "order_preparing"
	// StatusReady indicates the order is ready for pickup at the counter.
	StatusReady StatusCode = "order_ready"
	// StatusCompleted indicates the customer has received the order.
	StatusCompleted StatusCode = "order_completed"
	// StatusCancelled indicates the order was cancelled by the customer or staff.
	StatusCancelled StatusCode = "order_cancelled"
)

// OrderStatus is a catalog row pairing a status code with its human description.
type OrderStatus struct {
	ID          int64
	Code        StatusCode
	Description string
}

// StatusLookup resolves a status code to its catalog row. Implementations must
// be pre-populated with every StatusCode before any order can progress; a miss
// is a configuration defect, not a business error.
type StatusLookup interface {
	GetByStatus(code StatusCode) (OrderStatus, error)
}

// StatusDescriptions maps every lifecycle code to its canonical description,
// used to seed the catalog.
var StatusDescriptions = map[StatusCode]string{
	StatusPending:         "The order is pending.",
	StatusWaitingBurgers:  "Waiting for a burger.",
	StatusWaitingSides:    "Waiting for a side dish.",
	StatusWaitingDrinks:   "Waiting for a drink.",
	StatusWaitingDesserts: "Waiting for a dessert.",
	StatusReadyToPlace:    "The order is ready to be placed.",
	StatusPlaced:          "The customer has placed the order.",
	StatusPaid:            "The customer has paid the order.",
	StatusPreparing:       "The order is being prepared.",
	StatusReady:           "The order is ready for pickup at the counter.",
	StatusCompleted:       "The customer has received the order.",
	StatusCancelled:       "The order was cancelled by the customer or staff.",
}

// AllStatusCodes lists every lifecycle code in canonical advance order, with
// the cancellation branch last.
var AllStatusCodes = []StatusCode{
	StatusPending,
	StatusWaitingBurgers,
	StatusWaitingSides,
	StatusWaitingDrinks,
	StatusWaitingDesserts,
	StatusReadyToPlace,
	StatusPlaced,
	StatusPaid,
	StatusPreparing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// ValidStatusCode reports whether code is one of the twelve lifecycle codes.
func ValidStatusCode(code StatusCode) bool {
	_, ok := StatusDescriptions[code]
	return ok
}
