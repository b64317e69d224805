// Package batch is the Batch Submitter (spec.md §4.6): scheduled and
// manually-triggered aggregation of pending step-data submissions,
// grouped per device and pushed to the chain gateway one transaction
// per device. Grounded in the teacher's internal/ledger shape (a
// request-path collaborator wrapping a single external call) and in
// petstate.Orchestrator's use of golang.org/x/sync/errgroup for
// bounding concurrent chain calls under one deadline.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"witnessgate/internal/chain"
	"witnessgate/internal/store"
)

// DeviceResult is one device's outcome within a run, named for the
// per-device success flag, totals, and transaction handle spec.md
// §4.6 step 4 names.
type DeviceResult struct {
	DeviceID     string `json:"device_id"`
	Success      bool   `json:"success"`
	RecordCount  int    `json:"record_count"`
	TotalSteps   int64  `json:"total_steps"`
	TxHandle     string `json:"tx_handle,omitempty"`
	FailureError string `json:"failure_error,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// Summary is the batch-run result returned to the scheduler and to the
// manual REST trigger alike.
type Summary struct {
	RanAt   time.Time      `json:"ran_at"`
	Devices []DeviceResult `json:"devices"`
}

// Submitter runs the batch algorithm. maxConcurrency bounds how many
// per-device submissions run at once; callDeadline bounds each
// individual chain call.
type Submitter struct {
	store          *store.Store
	chainClient    chain.Client
	callDeadline   time.Duration
	maxConcurrency int
	now            func() time.Time
}

func New(st *store.Store, chainClient chain.Client, callDeadline time.Duration, maxConcurrency int) *Submitter {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Submitter{store: st, chainClient: chainClient, callDeadline: callDeadline, maxConcurrency: maxConcurrency, now: time.Now}
}

// RunOnce implements spec.md §4.6's algorithm: list pending, group by
// device preserving receive-time order, submit one chain transaction
// per device under a bounded deadline, mark success, isolate failure.
// A device lookup miss or chain error never aborts the rest of the
// batch.
func (s *Submitter) RunOnce(ctx context.Context) Summary {
	ranAt := s.now()
	pending, err := s.store.ListPending(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("batch: list pending failed")
		return Summary{RanAt: ranAt}
	}
	if len(pending) == 0 {
		return Summary{RanAt: ranAt}
	}

	grouped := groupByDevice(pending)

	var mu sync.Mutex
	results := make([]DeviceResult, 0, len(grouped))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for deviceID, records := range grouped {
		deviceID, records := deviceID, records
		g.Go(func() error {
			result := s.submitDevice(gctx, deviceID, records)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Summary{RanAt: ranAt, Devices: results}
}

func (s *Submitter) submitDevice(ctx context.Context, deviceID string, records []store.SubmissionRecord) DeviceResult {
	result := DeviceResult{DeviceID: deviceID, RecordCount: len(records)}

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil || device.ChainDeviceID == nil {
		result.Skipped = true
		log.Warn().Str("device_id", deviceID).Msg("batch: skipping device with no chain handle")
		return result
	}

	var totalSteps int64
	timestamps := make([]int64, len(records))
	signatures := make([][]byte, len(records))
	ids := make([]int64, len(records))
	for i, rec := range records {
		totalSteps += int64(rec.StepCount)
		timestamps[i] = rec.TimestampMS
		signatures[i] = rec.Signature
		ids[i] = rec.ID
	}
	result.TotalSteps = totalSteps

	cctx, cancel := context.WithTimeout(ctx, s.callDeadline)
	defer cancel()

	submitResult, err := s.chainClient.SubmitStepData(cctx, *device.ChainDeviceID, totalSteps, timestamps, signatures)
	if err != nil {
		result.FailureError = err.Error()
		log.Warn().Err(err).Str("device_id", deviceID).Bool("retryable", chain.IsRetryable(err)).
			Msg("batch: chain submit failed, leaving records pending")
		return result
	}

	if err := s.store.MarkSubmitted(ctx, ids, submitResult.TxHandle); err != nil {
		result.FailureError = err.Error()
		log.Error().Err(err).Str("device_id", deviceID).Str("tx_handle", submitResult.TxHandle).
			Msg("batch: chain submit succeeded but marking failed, records will resubmit next run")
		return result
	}

	result.Success = true
	result.TxHandle = submitResult.TxHandle
	return result
}

func groupByDevice(records []store.SubmissionRecord) map[string][]store.SubmissionRecord {
	grouped := map[string][]store.SubmissionRecord{}
	for _, rec := range records {
		grouped[rec.DeviceID] = append(grouped[rec.DeviceID], rec)
	}
	return grouped
}
