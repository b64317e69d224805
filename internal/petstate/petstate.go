// Package petstate is the Derived-State Orchestrator (spec.md §4.7):
// local-first resource/interaction rules for the per-device pet, with
// best-effort chain mirroring. Grounded in the teacher's
// internal/ledger — a thin adapter wrapping a single collaborator,
// called from the request path and never the other way around — and
// in original_source/sui_watch/VirtualPet.cpp's decay/feed/play rules,
// which spec.md §4.7 restates authoritatively.
package petstate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"witnessgate/internal/chain"
	"witnessgate/internal/store"
)

// ErrStepsTooFew is returned by ClaimResources when fewer than 100
// steps are offered (spec.md §4.7).
var ErrStepsTooFew = errors.New("petstate: fewer than 100 steps offered")

// Orchestrator holds the store and the chain gateway it mirrors to.
// chainDeadline bounds every chain call it makes so a slow or wedged
// chain never blocks a device's response past the deadline — on
// timeout the local result is returned and a warning surfaced (spec.md
// §9's local-then-chain mirror race note).
type Orchestrator struct {
	store         *store.Store
	chainClient   chain.Client
	chainDeadline time.Duration
	now           func() time.Time
}

func New(st *store.Store, chainClient chain.Client, chainDeadline time.Duration) *Orchestrator {
	return &Orchestrator{store: st, chainClient: chainClient, chainDeadline: chainDeadline, now: time.Now}
}

// View is the data returned to a session handler: the local-first pet
// state plus a flag for whether it is chain-backed, and any chain
// warning encountered along the way.
type View struct {
	Pet          store.PetState
	OnChain      bool
	ChainWarning string
}

// GetPet returns the current pet state for a device, creating one with
// the spec.md §4.7 defaults if none exists, attempting chain
// registration if a chain client is configured and the pet has no
// chain handle yet, and applying time-based decay before returning.
func (o *Orchestrator) GetPet(ctx context.Context, deviceID string) (View, error) {
	existing, err := o.store.GetPet(ctx, deviceID)
	if err == store.ErrNotFound {
		existing, err = o.store.CreatePet(ctx, deviceID, defaultPetName(deviceID))
	}
	if err != nil {
		return View{}, err
	}

	decayed := applyDecay(*existing, o.now())
	if err := o.store.UpdatePet(ctx, decayed); err != nil {
		return View{}, err
	}

	view := View{Pet: decayed, OnChain: decayed.ChainPetID != nil}

	if decayed.ChainPetID == nil && o.chainEnabled() {
		err := o.runWithDeadline(ctx, func(cctx context.Context) error {
			result, err := o.chainClient.CreatePet(cctx, decayed.Name, deviceID, "")
			if err != nil {
				return err
			}
			return o.store.SetChainPetID(cctx, deviceID, result.ChainPetHandle)
		})
		switch {
		case err == nil:
			view.OnChain = true
		case errors.Is(err, context.DeadlineExceeded):
			view.ChainWarning = "chain pet registration timed out"
		default:
			view.ChainWarning = "chain pet registration failed: " + err.Error()
		}
	}

	return view, nil
}

// applyDecay implements spec.md §4.7's time-based decay, applied on
// every read: hunger drops 1 per whole hour since last_fed (floor 0);
// happiness drops 1 per whole 2 hours since last_played (floor 0);
// health drops 1 if hunger<20 or happiness<20 (floor 0); health rises
// 1 if hunger>80 and happiness>80 (ceil 100).
func applyDecay(p store.PetState, now time.Time) store.PetState {
	if hours := int(now.Sub(p.LastFedAt).Hours()); hours > 0 {
		p.Hunger = clampPercent(p.Hunger - hours)
	}
	if twoHours := int(now.Sub(p.LastPlayedAt).Hours() / 2); twoHours > 0 {
		p.Happiness = clampPercent(p.Happiness - twoHours)
	}

	switch {
	case p.Hunger < 20 || p.Happiness < 20:
		p.Health = clampPercent(p.Health - 1)
	case p.Hunger > 80 && p.Happiness > 80:
		p.Health = clampPercent(p.Health + 1)
	}

	return p
}

// UpdatePet implements spec.md §4.3's updatePet(deviceId, fields)
// write. The only client-settable fields are the display name and the
// cosmetic string; every bounded or derived field stays server
// authoritative. Decay is applied first so the update lands on
// up-to-date state, same as GetPet.
func (o *Orchestrator) UpdatePet(ctx context.Context, deviceID string, name, cosmetic *string) (View, error) {
	existing, err := o.store.GetPet(ctx, deviceID)
	if err != nil {
		return View{}, err
	}
	updated := applyDecay(*existing, o.now())
	if name != nil {
		updated.Name = *name
	}
	if cosmetic != nil {
		updated.Cosmetic = cosmetic
	}
	if err := o.store.UpdatePet(ctx, updated); err != nil {
		return View{}, err
	}
	return View{Pet: updated, OnChain: updated.ChainPetID != nil}, nil
}

// ClaimResources implements spec.md §4.7's claimResources rule and
// mirrors the claim to the chain when configured.
func (o *Orchestrator) ClaimResources(ctx context.Context, deviceID string, steps int64) (View, error) {
	if steps < 100 {
		return View{}, ErrStepsTooFew
	}
	foodGained := int(steps / 100)
	energyGained := 2 * int(steps/150)

	pet, err := o.store.AddResources(ctx, deviceID, foodGained, energyGained)
	if err != nil {
		return View{}, err
	}
	view := View{Pet: *pet, OnChain: pet.ChainPetID != nil}

	if pet.ChainPetID != nil && o.chainEnabled() {
		o.mirrorClaim(ctx, *pet.ChainPetID, steps, &view)
	}
	return view, nil
}

func (o *Orchestrator) mirrorClaim(ctx context.Context, chainPetHandle string, steps int64, view *View) {
	err := o.runWithDeadline(ctx, func(cctx context.Context) error {
		result, err := o.chainClient.ClaimResources(cctx, chainPetHandle, steps)
		if err != nil {
			return err
		}
		adopted := view.Pet
		adopted.Food = result.NewFood
		adopted.Energy = result.NewEnergy
		if err := o.store.UpdatePet(cctx, adopted); err != nil {
			return err
		}
		view.Pet = adopted
		return nil
	})
	o.recordMirrorOutcome(view, err, "chain claim mirror")
}

// FeedPet implements spec.md §4.7's feedPet rule atomically via the
// store, then mirrors to chain and adopts the chain's authoritative
// bounded fields on success.
func (o *Orchestrator) FeedPet(ctx context.Context, deviceID string) (View, error) {
	pet, err := o.store.ConsumeAndApplyFeed(ctx, deviceID, o.now())
	if err != nil {
		return View{}, err
	}
	view := View{Pet: *pet, OnChain: pet.ChainPetID != nil}

	if pet.ChainPetID != nil && o.chainEnabled() {
		o.mirrorFeedOrPlay(ctx, *pet.ChainPetID, &view, func(cctx context.Context, handle string) (string, error) {
			result, err := o.chainClient.FeedPet(cctx, handle)
			return result.TxHandle, err
		})
	}
	return view, nil
}

// PlayWithPet implements spec.md §4.7's playWithPet rule.
func (o *Orchestrator) PlayWithPet(ctx context.Context, deviceID string) (View, error) {
	pet, err := o.store.ConsumeAndApplyPlay(ctx, deviceID, o.now())
	if err != nil {
		return View{}, err
	}
	view := View{Pet: *pet, OnChain: pet.ChainPetID != nil}

	if pet.ChainPetID != nil && o.chainEnabled() {
		o.mirrorFeedOrPlay(ctx, *pet.ChainPetID, &view, func(cctx context.Context, handle string) (string, error) {
			result, err := o.chainClient.PlayWithPet(cctx, handle)
			return result.TxHandle, err
		})
	}
	return view, nil
}

// mirrorFeedOrPlay runs the chain call and a follow-up getPet for
// authoritative state (spec.md §4.5) under one errgroup, overwriting
// the view's bounded fields from the chain snapshot on success.
func (o *Orchestrator) mirrorFeedOrPlay(ctx context.Context, chainPetHandle string, view *View, call func(context.Context, string) (string, error)) {
	var snapshot *chain.PetSnapshot
	err := o.runWithDeadline(ctx, func(cctx context.Context) error {
		g, gctx := errgroup.WithContext(cctx)
		g.Go(func() error {
			if _, err := call(gctx, chainPetHandle); err != nil {
				return err
			}
			var err error
			snapshot, err = o.chainClient.GetPet(gctx, chainPetHandle)
			return err
		})
		return g.Wait()
	})
	if err == nil && snapshot != nil {
		adopted := view.Pet
		adopted.Happiness = snapshot.Happiness
		adopted.Hunger = snapshot.Hunger
		adopted.Health = snapshot.Health
		adopted.Food = snapshot.Food
		adopted.Energy = snapshot.Energy
		adopted.Level = snapshot.Level
		if updateErr := o.store.UpdatePet(ctx, adopted); updateErr == nil {
			view.Pet = adopted
		}
	}
	o.recordMirrorOutcome(view, err, "chain mirror")
}

func (o *Orchestrator) recordMirrorOutcome(view *View, err error, what string) {
	switch {
	case err == nil:
		view.OnChain = true
	case errors.Is(err, context.DeadlineExceeded):
		view.ChainWarning = what + " timed out"
	default:
		view.ChainWarning = what + " failed: " + err.Error()
	}
}

// runWithDeadline bounds fn to chainDeadline so a slow chain never
// holds up a device's response past it.
func (o *Orchestrator) runWithDeadline(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, o.chainDeadline)
	defer cancel()
	if err := fn(cctx); err != nil {
		if cctx.Err() != nil {
			return context.DeadlineExceeded
		}
		return err
	}
	return nil
}

func (o *Orchestrator) chainEnabled() bool {
	_, disabled := o.chainClient.(chain.DisabledClient)
	return !disabled
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func defaultPetName(deviceID string) string {
	return "pet-" + deviceID
}
