// Package chain is the narrow adapter over the external content-
// addressed transaction ledger described in spec.md §4.5. Callers see
// only these named operations and opaque handles; the concrete wire
// shape of the chain is not this package's concern (nor the core's —
// spec.md §1 treats the on-chain contract as an external collaborator).
package chain

import (
	"context"
	"errors"
)

// ErrDisabled is returned by every operation on a Client built with
// chain mirroring turned off (spec.md §6: absence of any chain-related
// config variable disables chain mirroring globally).
var ErrDisabled = errors.New("chain: mirroring disabled")

type RegisterDeviceResult struct {
	ChainDeviceHandle string
	TxHandle          string
}

type SubmitStepDataResult struct {
	TxHandle string
}

type CreatePetResult struct {
	ChainPetHandle string
	TxHandle       string
}

type ClaimResourcesResult struct {
	FoodGained   int
	EnergyGained int
	NewFood      int
	NewEnergy    int
	TxHandle     string
}

type FeedPetResult struct {
	Evolved  bool
	NewLevel int
	TxHandle string
}

type PlayResult struct {
	TxHandle string
}

// PetSnapshot is the chain's authoritative view of a pet's bounded
// fields, adopted by the Derived-State Orchestrator on success
// (spec.md §4.7).
type PetSnapshot struct {
	Happiness int
	Hunger    int
	Health    int
	Food      int
	Energy    int
	Level     int
}

// Client is the full narrow interface spec.md §4.5 names. Every
// operation may block on network I/O and must be called with a
// deadline already attached to ctx.
type Client interface {
	RegisterDevice(ctx context.Context, deviceID string, publicKey []byte) (RegisterDeviceResult, error)
	SubmitStepData(ctx context.Context, chainDeviceHandle string, totalSteps int64, timestamps []int64, signatures [][]byte) (SubmitStepDataResult, error)
	CreatePet(ctx context.Context, name, deviceID, color string) (CreatePetResult, error)
	ClaimResources(ctx context.Context, chainPetHandle string, steps int64) (ClaimResourcesResult, error)
	FeedPet(ctx context.Context, chainPetHandle string) (FeedPetResult, error)
	PlayWithPet(ctx context.Context, chainPetHandle string) (PlayResult, error)
	GetPet(ctx context.Context, chainPetHandle string) (*PetSnapshot, error)
	GetBalance(ctx context.Context) (string, error)
}
