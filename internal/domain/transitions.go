package domain

import "slices"

// ProductCategory identifies one of the four canonical item categories.
type ProductCategory string

const (
	// CategoryBurgers is the first category collected when assembling an order.
	CategoryBurgers ProductCategory = "burgers"
	// CategorySides is the second category collected.
	CategorySides ProductCategory = "sides"
	// CategoryDrinks is the third category collected.
	CategoryDrinks ProductCategory = "drinks"
	// CategoryDesserts is the last category collected.
	CategoryDesserts ProductCategory = "desserts"
)

// CategorySequence lists the canonical category order used both for stage
// gating and for sorting the item collection.
var CategorySequence = []ProductCategory{
	CategoryBurgers,
	CategorySides,
	CategoryDrinks,
	CategoryDesserts,
}

// StatusTransitions is the single allowed advance successor per stage. The two
// terminal stages (completed, cancelled) have no entry.
var StatusTransitions = map[StatusCode]StatusCode{
	StatusPending:         StatusWaitingBurgers,
	StatusWaitingBurgers:  StatusWaitingSides,
	StatusWaitingSides:    StatusWaitingDrinks,
	StatusWaitingDrinks:   StatusWaitingDesserts,
	StatusWaitingDesserts: StatusReadyToPlace,
	StatusReadyToPlace:    StatusPlaced,
	StatusPlaced:          StatusPaid,
	StatusPaid:            StatusPreparing,
	StatusPreparing:       StatusReady,
	StatusReady:           StatusCompleted,
}

// ReversibleStatuses contains the stages from which a one-step revert is
// allowed. waiting_burgers is excluded: it has no predecessor in the
// collection cycle.
var ReversibleStatuses = []StatusCode{
	StatusWaitingSides,
	StatusWaitingDrinks,
	StatusWaitingDesserts,
	StatusReadyToPlace,
}

// CategoryStages maps each item category to the only stage that accepts it.
var CategoryStages = map[ProductCategory]StatusCode{
	CategoryBurgers:  StatusWaitingBurgers,
	CategorySides:    StatusWaitingSides,
	CategoryDrinks:   StatusWaitingDrinks,
	CategoryDesserts: StatusWaitingDesserts,
}

// CustomerOnlyStatuses lists stages a customer actor drives. Enforcement is an
// orchestration concern layered on top of the state machine.
var CustomerOnlyStatuses = []StatusCode{
	StatusPending,
	StatusWaitingBurgers,
	StatusWaitingSides,
	StatusWaitingDrinks,
	StatusWaitingDesserts,
	StatusReadyToPlace,
	StatusPlaced,
}

// EmployeeOnlyStatuses lists stages an employee actor drives.
var EmployeeOnlyStatuses = []StatusCode{
	StatusPaid,
	StatusPreparing,
	StatusReady,
}

// CancellableStatuses lists stages from which the cancellation branch is open.
var CancellableStatuses = []StatusCode{
	StatusPending,
	StatusWaitingBurgers,
	StatusWaitingSides,
	StatusWaitingDrinks,
	StatusWaitingDesserts,
	StatusReadyToPlace,
	StatusPlaced,
}

// significantStatuses are the transition targets that append a movement to the
// status history. Simple waiting-stage hops do not record history.
var significantStatuses = []StatusCode{
	StatusPlaced,
	StatusPaid,
	StatusPreparing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// NextStatus returns the advance successor for current, or false when current
// is terminal.
func NextStatus(current StatusCode) (StatusCode, bool) {
	next, ok := StatusTransitions[current]
	return next, ok
}

// PreviousStatus returns the unique stage whose advance target is current, or
// false when no such stage exists.
func PreviousStatus(current StatusCode) (StatusCode, bool) {
	for prev, next := range StatusTransitions {
		if next == current {
			return prev, true
		}
	}
	return "", false
}

// CanRevert reports whether the current stage permits a one-step revert.
func CanRevert(current StatusCode) bool {
	return slices.Contains(ReversibleStatuses, current)
}

// CanCancel reports whether the current stage permits cancellation.
func CanCancel(current StatusCode) bool {
	return slices.Contains(CancellableStatuses, current)
}

// IsCollectingStage reports whether the stage accepts item mutations.
func IsCollectingStage(current StatusCode) bool {
	for _, stage := range CategoryStages {
		if stage == current {
			return true
		}
	}
	return false
}

// StageForCategory returns the stage that accepts items of the given category.
func StageForCategory(category ProductCategory) (StatusCode, bool) {
	stage, ok := CategoryStages[category]
	return stage, ok
}

// CategoryForStage returns the item category collected at the given waiting
// stage, or false when the stage collects nothing.
func CategoryForStage(stage StatusCode) (ProductCategory, bool) {
	for category, s := range CategoryStages {
		if s == stage {
			return category, true
		}
	}
	return "", false
}

// RecordsMovement reports whether landing on target appends a history entry.
func RecordsMovement(target StatusCode) bool {
	return slices.Contains(significantStatuses, target)
}
