package chain

import "context"

var (
	_ Client = DisabledClient{}
	_ Client = (*HTTPClient)(nil)
)

// DisabledClient is installed when spec.md §6's chain config variables
// are absent. Every call fails with ErrDisabled so callers take the
// same best-effort-mirror code path they would for any other chain
// failure, without special-casing "no chain configured" everywhere.
type DisabledClient struct{}

func (DisabledClient) RegisterDevice(context.Context, string, []byte) (RegisterDeviceResult, error) {
	return RegisterDeviceResult{}, ErrDisabled
}

func (DisabledClient) SubmitStepData(context.Context, string, int64, []int64, [][]byte) (SubmitStepDataResult, error) {
	return SubmitStepDataResult{}, ErrDisabled
}

func (DisabledClient) CreatePet(context.Context, string, string, string) (CreatePetResult, error) {
	return CreatePetResult{}, ErrDisabled
}

func (DisabledClient) ClaimResources(context.Context, string, int64) (ClaimResourcesResult, error) {
	return ClaimResourcesResult{}, ErrDisabled
}

func (DisabledClient) FeedPet(context.Context, string) (FeedPetResult, error) {
	return FeedPetResult{}, ErrDisabled
}

func (DisabledClient) PlayWithPet(context.Context, string) (PlayResult, error) {
	return PlayResult{}, ErrDisabled
}

func (DisabledClient) GetPet(context.Context, string) (*PetSnapshot, error) {
	return nil, ErrDisabled
}

func (DisabledClient) GetBalance(context.Context) (string, error) {
	return "", ErrDisabled
}
