package store_test

import (
	"context"
	"testing"

	"witnessgate/internal/store"
	"witnessgate/internal/testutil"
)

func TestRegisterIsIdempotentOnSameKey(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	key := []byte("01234567890123456789012345678901")
	if _, err := st.Register(ctx, "d1", key); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := st.Register(ctx, "d1", key); err != nil {
		t.Fatalf("re-register with same key: %v", err)
	}
}

func TestRegisterRejectsKeyReuseUnderDifferentDevice(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	key := []byte("01234567890123456789012345678901")
	if _, err := st.Register(ctx, "d1", key); err != nil {
		t.Fatalf("register d1: %v", err)
	}
	if _, err := st.Register(ctx, "d2", key); err != store.ErrDeviceKeyInUse {
		t.Fatalf("expected ErrDeviceKeyInUse, got %v", err)
	}
}

func TestRegisterRejectsKeyChangeForExistingDevice(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register d1: %v", err)
	}
	if _, err := st.Register(ctx, "d1", []byte("99999999999999999999999999999999")); err != store.ErrDeviceKeyInUse {
		t.Fatalf("expected ErrDeviceKeyInUse on key change, got %v", err)
	}
}

func TestStoreSubmissionRejectsDuplicateTimestamp(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	rec := store.SubmissionRecord{
		DeviceID:      "d1",
		StepCount:     100,
		TimestampMS:   1700000000000,
		RawAccSamples: []store.Sample{{X: 1, Y: 2, Z: 3}},
		Signature:     []byte("sig"),
	}
	if _, err := st.StoreSubmission(ctx, rec); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if _, err := st.StoreSubmission(ctx, rec); err != store.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	records, err := st.ListPending(ctx, "d1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(records))
	}
}

func TestStoreSubmissionRejectsUnregisteredDevice(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rec := store.SubmissionRecord{
		DeviceID:      "ghost",
		StepCount:     10,
		TimestampMS:   1700000000000,
		RawAccSamples: []store.Sample{{X: 1, Y: 1, Z: 1}},
		Signature:     []byte("sig"),
	}
	if _, err := st.StoreSubmission(ctx, rec); err != store.ErrDeviceNotRegistered {
		t.Fatalf("expected ErrDeviceNotRegistered, got %v", err)
	}
}

func TestMarkSubmittedExcludesFromSubsequentPendingScan(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := st.StoreSubmission(ctx, store.SubmissionRecord{
		DeviceID:      "d1",
		StepCount:     50,
		TimestampMS:   1700000000001,
		RawAccSamples: []store.Sample{{X: 1, Y: 1, Z: 1}},
		Signature:     []byte("sig"),
	})
	if err != nil {
		t.Fatalf("store submission: %v", err)
	}

	if err := st.MarkSubmitted(ctx, []int64{id}, "tx-1"); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	pending, err := st.ListPending(ctx, "d1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending records after marking, got %d", len(pending))
	}

	device, err := st.GetDevice(ctx, "d1")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if device.TotalSubmissions != 1 {
		t.Fatalf("total_submissions = %d, want 1", device.TotalSubmissions)
	}
}

func TestListPendingPreservesReceiveOrder(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i, steps := range []int{50, 75, 25} {
		if _, err := st.StoreSubmission(ctx, store.SubmissionRecord{
			DeviceID:      "d1",
			StepCount:     steps,
			TimestampMS:   int64(1700000000000 + i),
			RawAccSamples: []store.Sample{{X: 1, Y: 1, Z: 1}},
			Signature:     []byte("sig"),
		}); err != nil {
			t.Fatalf("store submission %d: %v", i, err)
		}
	}

	records, err := st.ListPending(ctx, "d1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].StepCount != 50 || records[1].StepCount != 75 || records[2].StepCount != 25 {
		t.Fatalf("receive order not preserved: %+v", records)
	}
}

func TestCreatePetDefaults(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	pet, err := st.CreatePet(ctx, "d1", "buddy")
	if err != nil {
		t.Fatalf("create pet: %v", err)
	}
	if pet.Happiness != 50 || pet.Hunger != 50 || pet.Health != 100 || pet.Food != 5 || pet.Energy != 5 || pet.Level != 0 {
		t.Fatalf("unexpected defaults: %+v", pet)
	}
}

func TestConsumeAndApplyFeedRequiresFood(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	pet, err := st.CreatePet(ctx, "d1", "buddy")
	if err != nil {
		t.Fatalf("create pet: %v", err)
	}
	if _, err := st.AddResources(ctx, "d1", -pet.Food, 0); err != nil {
		t.Fatalf("drain food: %v", err)
	}
	if _, err := st.ConsumeAndApplyFeed(ctx, "d1", pet.LastFedAt); err != store.ErrInsufficientFood {
		t.Fatalf("expected ErrInsufficientFood, got %v", err)
	}
}
