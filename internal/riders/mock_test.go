package riders

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockSource_Deterministic(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	a := NewMockSource(clock)
	b := NewMockSource(clock)
	ctx := context.Background()

	for riderID := int64(1); riderID <= 20; riderID++ {
		pa, pb := a.Profile(ctx, riderID), b.Profile(ctx, riderID)
		if pa.Status != pb.Status {
			t.Fatalf("rider %d: profile status differs across instances", riderID)
		}
		if pa.Status == StatusOK && *pa.Value != *pb.Value {
			t.Errorf("rider %d: profile differs: %+v vs %+v", riderID, pa.Value, pb.Value)
		}

		ta, tb := a.ActiveTrips(ctx, riderID), b.ActiveTrips(ctx, riderID)
		if ta.Status != tb.Status || len(ta.Value) != len(tb.Value) {
			t.Errorf("rider %d: trips differ across instances", riderID)
		}

		la, lb := a.Location(ctx, riderID), b.Location(ctx, riderID)
		if la.Value.Latitude != lb.Value.Latitude || la.Value.Longitude != lb.Value.Longitude {
			t.Errorf("rider %d: location differs across instances", riderID)
		}
	}
}

func TestMockSource_CoordinatesInServiceArea(t *testing.T) {
	src := NewMockSource(time.Now)
	ctx := context.Background()

	for riderID := int64(1); riderID <= 50; riderID++ {
		res := src.Location(ctx, riderID)
		if res.Status != StatusOK {
			t.Fatalf("rider %d: location status %v", riderID, res.Status)
		}
		loc := res.Value
		if loc.Latitude < -34.7056 || loc.Latitude > -34.5265 {
			t.Errorf("rider %d: latitude %f outside service area", riderID, loc.Latitude)
		}
		if loc.Longitude < -58.5315 || loc.Longitude > -58.3314 {
			t.Errorf("rider %d: longitude %f outside service area", riderID, loc.Longitude)
		}
	}
}

func TestMockSource_InvalidRiderID(t *testing.T) {
	src := NewMockSource(time.Now)
	ctx := context.Background()

	if res := src.Profile(ctx, 0); res.Status != StatusError || !errors.Is(res.Err, ErrInvalidRider) {
		t.Errorf("profile for rider 0: %+v", res)
	}
	if res := src.ActiveTrips(ctx, -5); res.Status != StatusError {
		t.Errorf("trips for rider -5: %+v", res)
	}
	if _, err := src.ChangeTripState(ctx, 0, 1, ActionCancel, ""); !errors.Is(err, ErrInvalidRider) {
		t.Errorf("ChangeTripState for rider 0: %v", err)
	}
}

func TestMockSource_ChangeTripState(t *testing.T) {
	src := NewMockSource(time.Now)
	ctx := context.Background()

	msg, err := src.ChangeTripState(ctx, 7, 42, ActionRelease, "ran out of fuel")
	if err != nil {
		t.Fatalf("ChangeTripState failed: %v", err)
	}
	if msg == "" {
		t.Error("expected a result message")
	}

	if _, err := src.ChangeTripState(ctx, 7, 42, "explode", ""); err == nil {
		t.Error("invalid action must be rejected")
	}
}

func TestValidAction(t *testing.T) {
	for _, action := range []string{ActionRelease, ActionCancel, ActionNotDelivered} {
		if !ValidAction(action) {
			t.Errorf("%q should be valid", action)
		}
	}
	for _, action := range []string{"", "deliver", "RELEASE"} {
		if ValidAction(action) {
			t.Errorf("%q should be invalid", action)
		}
	}
}
