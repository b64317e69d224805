package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config addresses the external ledger service and carries this
// server's own signing key, used to author chain transactions. The
// key never leaves this package.
type Config struct {
	BaseURL         string
	NetworkID       string
	ChainPackageID  string
	ChainRegistryID string
	SigningKey      ed25519.PrivateKey
}

// HTTPClient is the concrete Client implementation: JSON-over-HTTP
// calls to the external chain service, each request authored with the
// server's Ed25519 key. Grounded on the teacher's internal/proxy-style
// http.Client{Timeout, Transport} construction, generalized from a
// single-path forwarder into a small typed RPC set.
type HTTPClient struct {
	cfg Config
	hc  *http.Client
}

func NewHTTPClient(cfg Config, callTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		hc: &http.Client{
			Timeout: callTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) call(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	signature := ed25519.Sign(c.cfg.SigningKey, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Network-Id", c.cfg.NetworkID)
	req.Header.Set("X-Chain-Package-Id", c.cfg.ChainPackageID)
	req.Header.Set("X-Chain-Registry-Id", c.cfg.ChainRegistryID)
	req.Header.Set("X-Server-Signature", hex.EncodeToString(signature))

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *HTTPClient) RegisterDevice(ctx context.Context, deviceID string, publicKey []byte) (RegisterDeviceResult, error) {
	var out RegisterDeviceResult
	err := c.call(ctx, "devices/register", map[string]any{
		"device_id":  deviceID,
		"public_key": hex.EncodeToString(publicKey),
	}, &out)
	return out, err
}

func (c *HTTPClient) SubmitStepData(ctx context.Context, chainDeviceHandle string, totalSteps int64, timestamps []int64, signatures [][]byte) (SubmitStepDataResult, error) {
	hexSigs := make([]string, len(signatures))
	for i, sig := range signatures {
		hexSigs[i] = hex.EncodeToString(sig)
	}
	var out SubmitStepDataResult
	err := c.call(ctx, "devices/submit-steps", map[string]any{
		"chain_device_handle": chainDeviceHandle,
		"total_steps":         totalSteps,
		"timestamps":          timestamps,
		"signatures":          hexSigs,
	}, &out)
	return out, err
}

func (c *HTTPClient) CreatePet(ctx context.Context, name, deviceID, color string) (CreatePetResult, error) {
	var out CreatePetResult
	err := c.call(ctx, "pets/create", map[string]any{
		"name":      name,
		"device_id": deviceID,
		"color":     color,
	}, &out)
	return out, err
}

func (c *HTTPClient) ClaimResources(ctx context.Context, chainPetHandle string, steps int64) (ClaimResourcesResult, error) {
	var out ClaimResourcesResult
	err := c.call(ctx, "pets/claim-resources", map[string]any{
		"chain_pet_handle": chainPetHandle,
		"steps":            steps,
	}, &out)
	return out, err
}

func (c *HTTPClient) FeedPet(ctx context.Context, chainPetHandle string) (FeedPetResult, error) {
	var out FeedPetResult
	err := c.call(ctx, "pets/feed", map[string]any{"chain_pet_handle": chainPetHandle}, &out)
	return out, err
}

func (c *HTTPClient) PlayWithPet(ctx context.Context, chainPetHandle string) (PlayResult, error) {
	var out PlayResult
	err := c.call(ctx, "pets/play", map[string]any{"chain_pet_handle": chainPetHandle}, &out)
	return out, err
}

func (c *HTTPClient) GetPet(ctx context.Context, chainPetHandle string) (*PetSnapshot, error) {
	var out PetSnapshot
	if err := c.call(ctx, "pets/get", map[string]any{"chain_pet_handle": chainPetHandle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetBalance(ctx context.Context) (string, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	err := c.call(ctx, "balance", map[string]any{"registry_id": c.cfg.ChainRegistryID}, &out)
	if err != nil {
		return "", fmt.Errorf("chain: get balance: %w", err)
	}
	return out.Balance, nil
}
