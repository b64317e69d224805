package batch_test

import (
	"context"
	"testing"
	"time"

	"witnessgate/internal/batch"
	"witnessgate/internal/chain"
	"witnessgate/internal/store"
	"witnessgate/internal/testutil"
)

// fakeChainClient lets each test script which device handles fail.
type fakeChainClient struct {
	chain.DisabledClient
	failHandles map[string]bool
	calls       map[string]chain.SubmitStepDataResult
}

func newFakeChainClient(failHandles ...string) *fakeChainClient {
	f := map[string]bool{}
	for _, h := range failHandles {
		f[h] = true
	}
	return &fakeChainClient{failHandles: f, calls: map[string]chain.SubmitStepDataResult{}}
}

func (f *fakeChainClient) SubmitStepData(_ context.Context, chainDeviceHandle string, totalSteps int64, timestamps []int64, signatures [][]byte) (chain.SubmitStepDataResult, error) {
	if f.failHandles[chainDeviceHandle] {
		return chain.SubmitStepDataResult{}, &chain.HTTPError{StatusCode: 500, Body: "simulated failure"}
	}
	result := chain.SubmitStepDataResult{TxHandle: "tx-" + chainDeviceHandle}
	f.calls[chainDeviceHandle] = result
	return result, nil
}

func registerWithChainHandle(t *testing.T, st *store.Store, deviceID string, key []byte) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.Register(ctx, deviceID, key); err != nil {
		t.Fatalf("register %s: %v", deviceID, err)
	}
	if err := st.SetChainDeviceID(ctx, deviceID, "chain-"+deviceID); err != nil {
		t.Fatalf("set chain device id %s: %v", deviceID, err)
	}
}

func submitSteps(t *testing.T, st *store.Store, deviceID string, stepCounts ...int) {
	t.Helper()
	ctx := context.Background()
	for i, steps := range stepCounts {
		if _, err := st.StoreSubmission(ctx, store.SubmissionRecord{
			DeviceID:      deviceID,
			StepCount:     steps,
			TimestampMS:   int64(1700000000000 + i),
			RawAccSamples: []store.Sample{{X: 1, Y: 1, Z: 1}},
			Signature:     []byte("sig"),
		}); err != nil {
			t.Fatalf("store submission for %s: %v", deviceID, err)
		}
	}
}

func TestRunOnceGroupsByDeviceAndMarksSubmitted(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	registerWithChainHandle(t, st, "d1", []byte("01234567890123456789012345678901"))
	registerWithChainHandle(t, st, "d2", []byte("11234567890123456789012345678901"))
	submitSteps(t, st, "d1", 50, 75, 25)
	submitSteps(t, st, "d2", 200)

	fake := newFakeChainClient()
	submitter := batch.New(st, fake, 5*time.Second, 4)
	summary := submitter.RunOnce(context.Background())

	if len(summary.Devices) != 2 {
		t.Fatalf("expected 2 device results, got %d", len(summary.Devices))
	}
	byDevice := map[string]batch.DeviceResult{}
	for _, d := range summary.Devices {
		byDevice[d.DeviceID] = d
	}
	if !byDevice["d1"].Success || byDevice["d1"].TotalSteps != 150 {
		t.Fatalf("d1 result unexpected: %+v", byDevice["d1"])
	}
	if !byDevice["d2"].Success || byDevice["d2"].TotalSteps != 200 {
		t.Fatalf("d2 result unexpected: %+v", byDevice["d2"])
	}

	pendingD1, err := st.ListPending(context.Background(), "d1")
	if err != nil {
		t.Fatalf("list pending d1: %v", err)
	}
	if len(pendingD1) != 0 {
		t.Fatalf("expected d1's records marked submitted, %d still pending", len(pendingD1))
	}

	d1, err := st.GetDevice(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get device d1: %v", err)
	}
	if d1.TotalSubmissions != 1 {
		t.Fatalf("d1 total_submissions = %d, want 1", d1.TotalSubmissions)
	}
}

func TestRunOnceIsolatesPerDeviceFailure(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	registerWithChainHandle(t, st, "d1", []byte("01234567890123456789012345678901"))
	registerWithChainHandle(t, st, "d2", []byte("11234567890123456789012345678901"))
	submitSteps(t, st, "d1", 50, 75, 25)
	submitSteps(t, st, "d2", 200)

	fake := newFakeChainClient("chain-d2")
	submitter := batch.New(st, fake, 5*time.Second, 4)
	summary := submitter.RunOnce(context.Background())

	byDevice := map[string]batch.DeviceResult{}
	for _, d := range summary.Devices {
		byDevice[d.DeviceID] = d
	}
	if !byDevice["d1"].Success {
		t.Fatalf("expected d1 to succeed despite d2's failure: %+v", byDevice["d1"])
	}
	if byDevice["d2"].Success {
		t.Fatalf("expected d2 to fail: %+v", byDevice["d2"])
	}

	pendingD2, err := st.ListPending(context.Background(), "d2")
	if err != nil {
		t.Fatalf("list pending d2: %v", err)
	}
	if len(pendingD2) != 1 {
		t.Fatalf("expected d2's record to remain pending, got %d", len(pendingD2))
	}
}

func TestRunOnceSkipsDeviceWithNoChainHandle(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := st.Register(ctx, "d1", []byte("01234567890123456789012345678901")); err != nil {
		t.Fatalf("register: %v", err)
	}
	submitSteps(t, st, "d1", 50)

	submitter := batch.New(st, newFakeChainClient(), 5*time.Second, 4)
	summary := submitter.RunOnce(ctx)

	if len(summary.Devices) != 1 || !summary.Devices[0].Skipped {
		t.Fatalf("expected skipped result for device with no chain handle: %+v", summary.Devices)
	}
}

func TestRunOnceReturnsEmptySummaryWhenNothingPending(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	submitter := batch.New(st, newFakeChainClient(), 5*time.Second, 4)
	summary := submitter.RunOnce(context.Background())
	if len(summary.Devices) != 0 {
		t.Fatalf("expected empty summary, got %+v", summary.Devices)
	}
}
