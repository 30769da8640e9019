package domain

import "testing"

func TestTransitionTableCoversAllNonTerminalStatuses(t *testing.T) {
	for _, code := range AllStatusCodes {
		_, ok := NextStatus(code)
		terminal := code == StatusCompleted || code == StatusCancelled
		if terminal && ok {
			t.Fatalf("terminal status %s must not have an advance entry", code)
		}
		if !terminal && !ok {
			t.Fatalf("non-terminal status %s is missing an advance entry", code)
		}
	}
}

func TestPreviousStatusIsUniqueInverse(t *testing.T) {
	for current, next := range StatusTransitions {
		prev, ok := PreviousStatus(next)
		if !ok {
			t.Fatalf("no predecessor found for %s", next)
		}
		if prev != current {
			t.Fatalf("predecessor of %s: expected %s, got %s", next, current, prev)
		}
	}
}

func TestReversibleStatusesHavePredecessors(t *testing.T) {
	for _, code := range ReversibleStatuses {
		if _, ok := PreviousStatus(code); !ok {
			t.Fatalf("reversible status %s has no predecessor", code)
		}
	}
	if CanRevert(StatusWaitingBurgers) {
		t.Fatalf("waiting_burgers must not be reversible")
	}
}

func TestCategoryStagesMatchSequence(t *testing.T) {
	if len(CategorySequence) != len(CategoryStages) {
		t.Fatalf("category sequence and stage map disagree")
	}
	for _, category := range CategorySequence {
		stage, ok := StageForCategory(category)
		if !ok {
			t.Fatalf("category %s has no stage", category)
		}
		if !IsCollectingStage(stage) {
			t.Fatalf("stage %s for category %s is not a collecting stage", stage, category)
		}
	}
}

func TestRoleGatedStatusSetsAreDisjoint(t *testing.T) {
	for _, customer := range CustomerOnlyStatuses {
		for _, employee := range EmployeeOnlyStatuses {
			if customer == employee {
				t.Fatalf("status %s gated for both roles", customer)
			}
		}
	}
}

func TestAllStatusCodesHaveDescriptions(t *testing.T) {
	for _, code := range AllStatusCodes {
		if StatusDescriptions[code] == "" {
			t.Fatalf("status %s has no description", code)
		}
	}
	if !ValidStatusCode(StatusPlaced) {
		t.Fatalf("placed must be a valid code")
	}
	if ValidStatusCode("order_unknown") {
		t.Fatalf("unknown code must be invalid")
	}
}
