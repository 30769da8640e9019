package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Actor labels recorded in movement history when no explicit actor is known.
// The anonymous labels are kept verbatim for compatibility with audit records
// already written.
const (
	ActorSystem       = "System"
	AnonymousCustomer = "Cliente Anônimo"
	AnonymousEmployee = "Funcionário Anônimo"
)

// OrderItem is a line item owned exclusively by its order. Product fields are
// a denormalised snapshot captured when the item was added, decoupled from the
// live catalog. Prices are in the smallest currency unit.
type OrderItem struct {
	ID              int64
	ProductID       int64
	ProductName     string
	ProductSKU      string
	ProductPrice    int64
	ProductCategory ProductCategory
	Quantity        int
	Observation     string
}

// Total returns the line total for this item.
func (i OrderItem) Total() int64 {
	return i.ProductPrice * int64(i.Quantity)
}

// Order is the aggregate root of the lifecycle state machine. It assumes
// exclusive access for the duration of one logical operation; callers must
// serialise concurrent mutations of the same order externally.
type Order struct {
	ID            int64
	CustomerID    string
	EmployeeID    string
	PaymentID     string
	Status        OrderStatus
	Items         []OrderItem
	History       []StatusMovement
	CreatedAt     time.Time
	UpdatedAt     time.Time
	InactivatedAt *time.Time

	total *int64
}

// NewOrder creates an order in the pending stage holding exactly one synthetic
// history entry authored by System.
func NewOrder(lookup StatusLookup, customerID string, now time.Time) (*Order, error) {
	pending, err := lookup.GetByStatus(StatusPending)
	if err != nil {
		return nil, fmt.Errorf("%w: status %q missing from catalog: %v", ErrConfiguration, StatusPending, err)
	}

	order := &Order{
		CustomerID: strings.TrimSpace(customerID),
		Status:     pending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	order.History = append(order.History, StatusMovement{
		NewStatus: StatusPending,
		ChangedBy: ActorSystem,
		ChangedAt: now,
	})
	return order, nil
}

// Total returns the sum of item line totals, computed lazily and cached until
// the item collection changes.
func (o *Order) Total() int64 {
	if o.total != nil {
		return *o.total
	}
	var sum int64
	for _, item := range o.Items {
		sum += item.Total()
	}
	o.total = &sum
	return sum
}

// AddItem appends an item whose category must match the current waiting stage,
// then restores the canonical category ordering of the collection.
func (o *Order) AddItem(item OrderItem) error {
	if err := o.requireCollectingStage("add items"); err != nil {
		return err
	}
	if item.Quantity < 1 {
		return fmt.Errorf("%w: item quantity must be at least 1", ErrInvalidInput)
	}

	expected, ok := StageForCategory(item.ProductCategory)
	if !ok {
		return fmt.Errorf("%w: invalid category %q", ErrInvalidInput, item.ProductCategory)
	}
	if o.Status.Code != expected {
		return fmt.Errorf("%w: cannot add items of category %q while the order is in status %q",
			ErrInvalidInput, item.ProductCategory, o.Status.Code)
	}

	items := append(slices.Clone(o.Items), item)
	sorted, err := sortByCategory(items)
	if err != nil {
		return err
	}
	o.Items = sorted
	o.total = nil
	return nil
}

// RemoveItem decrements the item quantity by one, removing the item entirely
// when the quantity reaches zero. ChangeItemQuantity sets quantities directly;
// the decrement policy here is deliberate.
func (o *Order) RemoveItem(itemID int64) error {
	if err := o.requireCollectingStage("remove items"); err != nil {
		return err
	}

	idx := o.itemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}

	if o.Items[idx].Quantity > 1 {
		o.Items[idx].Quantity--
	} else {
		o.Items = slices.Delete(slices.Clone(o.Items), idx, idx+1)
	}
	o.total = nil
	return nil
}

// ChangeItemQuantity sets the quantity of an item directly.
func (o *Order) ChangeItemQuantity(itemID int64, quantity int) error {
	if err := o.requireCollectingStage("change item quantities"); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: item quantity must be greater than zero", ErrInvalidInput)
	}

	idx := o.itemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}
	o.Items[idx].Quantity = quantity
	o.total = nil
	return nil
}

// ChangeItemObservation replaces the free-text note attached to an item.
func (o *Order) ChangeItemObservation(itemID int64, observation string) error {
	if err := o.requireCollectingStage("change item observations"); err != nil {
		return err
	}

	idx := o.itemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %d", ErrItemNotFound, itemID)
	}
	o.Items[idx].Observation = strings.TrimSpace(observation)
	return nil
}

// Clear empties the item collection and force-resets the stage to
// waiting_burgers without recording a movement.
func (o *Order) Clear(lookup StatusLookup, now time.Time) error {
	if !IsCollectingStage(o.Status.Code) && o.Status.Code != StatusReadyToPlace {
		return fmt.Errorf("%w: the order is not in a valid status to clear items", ErrInvalidTransition)
	}

	status, err := lookup.GetByStatus(StatusWaitingBurgers)
	if err != nil {
		return fmt.Errorf("%w: status %q missing from catalog: %v", ErrConfiguration, StatusWaitingBurgers, err)
	}

	o.Items = nil
	o.total = nil
	o.Status = status
	o.UpdatedAt = now
	return nil
}

// AdvanceCommand carries the optional actor override and the employee argument
// required by the preparing transition.
type AdvanceCommand struct {
	Actor    string
	Employee string
	Now      time.Time
}

// Advance moves the order to the single defined next stage. Significant
// transitions append a movement; the preparing transition additionally
// requires and records the employee identifier.
func (o *Order) Advance(lookup StatusLookup, cmd AdvanceCommand) error {
	next, ok := NextStatus(o.Status.Code)
	if !ok {
		return fmt.Errorf("%w: status %q does not permit transitions", ErrInvalidTransition, o.Status.Code)
	}

	if next == StatusPreparing {
		employee := strings.TrimSpace(cmd.Employee)
		if employee == "" {
			return fmt.Errorf("%w: an employee is required to prepare the order", ErrInvalidInput)
		}
		o.EmployeeID = employee
	}

	changedBy := strings.TrimSpace(cmd.Actor)
	if changedBy == "" {
		changedBy = o.defaultActor(next)
	}
	return o.setStage(lookup, next, changedBy, cmd.Now)
}

// Revert moves the order back to the unique stage whose advance target is the
// current stage. Only the collection stages after waiting_burgers permit it.
func (o *Order) Revert(lookup StatusLookup, actor string, now time.Time) error {
	if !CanRevert(o.Status.Code) {
		return fmt.Errorf("%w: status %q does not permit going back", ErrInvalidTransition, o.Status.Code)
	}

	previous, ok := PreviousStatus(o.Status.Code)
	if !ok {
		// Unreachable while ReversibleStatuses stays a subset of the table's targets.
		return fmt.Errorf("%w: cannot determine the previous status for %q", ErrConfiguration, o.Status.Code)
	}
	return o.setStage(lookup, previous, strings.TrimSpace(actor), now)
}

// Cancel moves the order onto the cancellation branch and records a movement
// attributed to the customer unless an explicit actor is supplied.
func (o *Order) Cancel(lookup StatusLookup, actor string, now time.Time) error {
	if !CanCancel(o.Status.Code) {
		return fmt.Errorf("%w: status %q does not permit cancellation", ErrInvalidTransition, o.Status.Code)
	}

	changedBy := strings.TrimSpace(actor)
	if changedBy == "" {
		changedBy = o.CustomerID
	}
	if changedBy == "" {
		changedBy = AnonymousCustomer
	}
	return o.setStage(lookup, StatusCancelled, changedBy, now)
}

// setStage is the single guard+mutate+record primitive behind advance, revert
// and cancel: it resolves the target status, appends a movement when the
// target is significant, and reassigns the current status.
func (o *Order) setStage(lookup StatusLookup, target StatusCode, changedBy string, now time.Time) error {
	status, err := lookup.GetByStatus(target)
	if err != nil {
		return fmt.Errorf("%w: status %q missing from catalog: %v", ErrConfiguration, target, err)
	}

	if RecordsMovement(target) {
		o.recordMovement(target, changedBy, now)
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

// recordMovement appends a history entry capturing the order as it was before
// the transition applied. The full item list is embedded only while the order
// sits at ready_to_place or placed.
func (o *Order) recordMovement(target StatusCode, changedBy string, now time.Time) {
	old := o.Status.Code
	snapshot := &OrderSnapshot{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		EmployeeID:    o.EmployeeID,
		CurrentStatus: old,
		Total:         o.Total(),
	}

	if len(o.Items) > 0 && (old == StatusReadyToPlace || old == StatusPlaced) {
		snapshot.Items = make([]SnapshotItem, 0, len(o.Items))
		for _, item := range o.Items {
			snapshot.Items = append(snapshot.Items, SnapshotItem{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.ProductPrice,
				Total:       item.Total(),
				Observation: item.Observation,
			})
		}
	}

	o.History = append(o.History, StatusMovement{
		OrderID:   o.ID,
		OldStatus: &old,
		NewStatus: target,
		ChangedBy: changedBy,
		ChangedAt: now,
		Snapshot:  snapshot,
	})
}

func (o *Order) defaultActor(target StatusCode) string {
	switch target {
	case StatusPlaced:
		if o.CustomerID != "" {
			return o.CustomerID
		}
		return AnonymousCustomer
	case StatusPaid:
		return ActorSystem
	case StatusPreparing, StatusReady, StatusCompleted:
		if o.EmployeeID != "" {
			return o.EmployeeID
		}
		return AnonymousEmployee
	default:
		return ""
	}
}

func (o *Order) requireCollectingStage(action string) error {
	if !IsCollectingStage(o.Status.Code) {
		return fmt.Errorf("%w: the order is not in a valid status to %s", ErrInvalidTransition, action)
	}
	return nil
}

func (o *Order) itemIndex(itemID int64) int {
	return slices.IndexFunc(o.Items, func(item OrderItem) bool {
		return item.ID == itemID
	})
}

// sortByCategory regroups items into the canonical category sequence,
// preserving relative insertion order within each category.
func sortByCategory(items []OrderItem) ([]OrderItem, error) {
	grouped := make(map[ProductCategory][]OrderItem, len(CategorySequence))
	for _, item := range items {
		if _, ok := CategoryStages[item.ProductCategory]; !ok {
			return nil, fmt.Errorf("%w: item %q has invalid category %q",
				ErrInvalidInput, item.ProductName, item.ProductCategory)
		}
		grouped[item.ProductCategory] = append(grouped[item.ProductCategory], item)
	}

	sorted := make([]OrderItem, 0, len(items))
	for _, category := range CategorySequence {
		sorted = append(sorted, grouped[category]...)
	}
	return sorted, nil
}
