// Package session is the per-connection state machine described in
// spec.md §4.4: one WebSocket connection per device, typed JSON frame
// dispatch, and the Connected → Registered → Authenticated transitions.
// Grounded in the teacher's internal/ws readLoop/writeLoop/safeSend
// shape, generalized from a two-player table session to a single
// device session.
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"witnessgate/internal/canon"
	"witnessgate/internal/chain"
	"witnessgate/internal/petstate"
	"witnessgate/internal/store"
	"witnessgate/internal/verify"
)

// State is a session's position in the spec.md §4.4 state machine.
type State int

const (
	StateConnected State = iota
	StateRegistered
	StateAuthenticated
)

const protocolVersion = "1.0"

// Client is a single device's connection: one read loop, one write
// loop, and the state the spec's dispatch table gates on.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	state    State
	deviceID string
	lastPing time.Time
}

func (c *Client) Send(frame any) {
	msg, err := json.Marshal(frame)
	if err != nil {
		return
	}
	safeSend(c.send, msg)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() { _ = recover() }()
	select {
	case ch <- msg:
	default:
		// outbound channel full; spec.md §5 says drop the session
		// rather than buffer unboundedly. The write loop exiting on a
		// closed channel tears the connection down.
		close(ch)
	}
}

func safeClose(ch chan []byte) {
	defer func() { _ = recover() }()
	close(ch)
}

// Server owns the live connection map (keyed by authenticated device
// id) and the collaborators every handler needs.
type Server struct {
	store       *store.Store
	chainClient chain.Client
	orchestrator *petstate.Orchestrator
	registry    *registry

	idleTimeout  time.Duration
	pingInterval time.Duration
	sendBuffer   int
}

func NewServer(st *store.Store, chainClient chain.Client, orchestrator *petstate.Orchestrator, idleTimeout, pingInterval time.Duration, sendBuffer int) *Server {
	return &Server{
		store:        st,
		chainClient:  chainClient,
		orchestrator: orchestrator,
		registry:     newRegistry(),
		idleTimeout:  idleTimeout,
		pingInterval: pingInterval,
		sendBuffer:   sendBuffer,
	}
}

// HandleConn drives one accepted WebSocket connection end to end. It
// returns once the connection is closed, evicted, or its read loop
// errors out.
func (s *Server) HandleConn(conn *websocket.Conn) {
	c := &Client{conn: conn, send: make(chan []byte, s.sendBuffer), state: StateConnected, lastPing: time.Now()}
	c.Send(welcomeFrame{Type: TypeWelcome, ProtocolVersion: protocolVersion})

	go s.writeLoop(c)
	s.readLoop(c)
}

// writeLoop serializes outbound frames (spec.md §4.4's "writes to a
// session's outbound channel are serialized") and sends a WebSocket
// ping every pingInterval so idle-but-alive devices don't trip the
// read deadline.
func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(c *Client) {
	defer s.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.lastPing = time.Now()
		return c.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		var base envelope
		if err := json.Unmarshal(msg, &base); err != nil {
			c.Send(errorFrame{Type: TypeError, Error: reasonFor(fmt.Errorf("%w: malformed frame", ErrValidation))})
			continue
		}
		s.dispatch(c, base.Type, msg)
	}
}

// dispatch enforces the spec.md §4.4 per-state acceptance table before
// handing the raw frame to its handler. A rejected message yields an
// error frame; the session stays open. A handler panic is recovered
// here and answered with an internal-error frame, so the read loop
// keeps running.
func (s *Server) dispatch(c *Client, msgType string, raw []byte) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("device_id", c.deviceID).Str("type", msgType).Msg("session: handler panic")
			c.Send(errorFrame{Type: TypeError, Error: reasonFor(ErrInternal)})
		}
	}()

	allowed := acceptedIn(c.state, msgType)
	if !allowed {
		c.Send(errorFrame{Type: TypeError, Error: reasonFor(fmt.Errorf("%w: %q not allowed in current state", ErrState, msgType))})
		return
	}

	switch msgType {
	case TypeRegister:
		s.handleRegister(ctx, c, raw)
	case TypeAuthenticate:
		s.handleAuthenticate(ctx, c, raw)
	case TypePing:
		s.handlePing(c)
	case TypeStepData:
		s.handleStepData(ctx, c, raw)
	case TypeGetPet:
		s.handleGetPet(ctx, c)
	case TypeUpdatePet:
		s.handleUpdatePet(ctx, c, raw)
	case TypeClaimResources:
		s.handleClaimResources(ctx, c, raw)
	case TypeFeedPet:
		s.handleFeedPet(ctx, c)
	case TypePlayWithPet:
		s.handlePlayWithPet(ctx, c)
	default:
		c.Send(errorFrame{Type: TypeError, Error: reasonFor(fmt.Errorf("%w: unrecognized type %q", ErrValidation, msgType))})
	}
}

func acceptedIn(state State, msgType string) bool {
	switch msgType {
	case TypeRegister, TypePing:
		return true
	case TypeAuthenticate:
		return state == StateRegistered || state == StateAuthenticated
	case TypeStepData, TypeGetPet, TypeUpdatePet, TypeClaimResources, TypeFeedPet, TypePlayWithPet:
		return state == StateAuthenticated
	default:
		return true // unknown types fall through to the validation error in dispatch
	}
}

func (s *Server) handleRegister(ctx context.Context, c *Client, raw []byte) {
	var msg registerMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.DeviceID == "" {
		c.Send(registerResponse{Type: TypeRegisterResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: missing deviceId", ErrValidation))})
		return
	}
	publicKey, err := decodeHexField(msg.PublicKey, 32)
	if err != nil {
		c.Send(registerResponse{Type: TypeRegisterResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: %v", ErrValidation, err))})
		return
	}

	device, err := s.store.Register(ctx, msg.DeviceID, publicKey)
	if err != nil {
		c.Send(registerResponse{Type: TypeRegisterResponse, Success: false, Error: reasonFor(mapStoreErr(err))})
		return
	}

	resp := registerResponse{Type: TypeRegisterResponse, Success: true, DeviceID: device.ID}
	if s.chainConfigured() {
		cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := s.chainClient.RegisterDevice(cctx, device.ID, publicKey)
		cancel()
		if err != nil {
			resp.Chain = &chainNote{Warning: "chain registration failed: " + err.Error()}
		} else {
			resp.Chain = &chainNote{TxID: result.TxHandle}
			_ = s.store.SetChainDeviceID(ctx, device.ID, result.ChainDeviceHandle)
		}
	}

	if c.state == StateConnected {
		c.state = StateRegistered
	}
	c.Send(resp)
}

func (s *Server) handleAuthenticate(ctx context.Context, c *Client, raw []byte) {
	var msg authenticateMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.DeviceID == "" {
		c.Send(authResponse{Type: TypeAuthResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: missing deviceId", ErrValidation))})
		return
	}

	if _, err := s.store.GetDevice(ctx, msg.DeviceID); err != nil {
		c.Send(authResponse{Type: TypeAuthResponse, Success: false, Error: reasonFor(mapStoreErr(err))})
		return
	}

	c.deviceID = msg.DeviceID
	c.state = StateAuthenticated
	s.registry.bind(msg.DeviceID, c)

	c.Send(authResponse{Type: TypeAuthResponse, Success: true, DeviceID: msg.DeviceID})
}

func (s *Server) handlePing(c *Client) {
	c.Send(pongFrame{Type: TypePong, TimestampMS: time.Now().UnixMilli()})
}

func (s *Server) handleStepData(ctx context.Context, c *Client, raw []byte) {
	var msg stepDataMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: malformed step_data", ErrValidation))})
		return
	}
	if msg.DeviceID != c.deviceID {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: deviceId mismatch", ErrValidation))})
		return
	}
	if err := validateStepData(msg); err != nil {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(err)})
		return
	}

	signature, err := decodeHexField(msg.Signature, 64)
	if err != nil {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(fmt.Errorf("%w: %v", ErrValidation, err))})
		return
	}

	device, err := s.store.GetDevice(ctx, c.deviceID)
	if err != nil {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(mapStoreErr(err))})
		return
	}

	payload := canon.StepDataPayload{
		DeviceID:        msg.DeviceID,
		StepCount:       msg.StepCount,
		TimestampMS:     msg.Timestamp,
		FirmwareVersion: msg.FirmwareVersion,
		BatteryPercent:  msg.BatteryPercent,
		RawAccSamples:   msg.RawAccSamples,
	}
	if !verify.StepData(payload, signature, device.PublicKey) {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(ErrSignature)})
		return
	}

	samples := make([]store.Sample, len(msg.RawAccSamples))
	for i, s3 := range msg.RawAccSamples {
		samples[i] = store.Sample{X: s3[0], Y: s3[1], Z: s3[2]}
	}

	id, err := s.store.StoreSubmission(ctx, store.SubmissionRecord{
		DeviceID:        msg.DeviceID,
		StepCount:       msg.StepCount,
		TimestampMS:     msg.Timestamp,
		FirmwareVersion: msg.FirmwareVersion,
		BatteryPercent:  msg.BatteryPercent,
		RawAccSamples:   samples,
		Signature:       signature,
		Verified:        true,
	})
	if err != nil {
		c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: false, Error: reasonFor(mapStoreErr(err))})
		return
	}

	c.Send(stepDataResponse{Type: TypeStepDataResponse, Success: true, DataID: id, StepCount: msg.StepCount, Verified: true})
}

// validateStepData implements the ValidationError and TemporalError
// taxonomy entries of spec.md §7: out-of-range scalars and timestamps
// older than 7 days or more than 5 minutes in the future.
func validateStepData(msg stepDataMessage) error {
	if msg.StepCount < 1 || msg.StepCount > 100000 {
		return fmt.Errorf("%w: stepCount out of range", ErrValidation)
	}
	if msg.BatteryPercent < 0 || msg.BatteryPercent > 100 {
		return fmt.Errorf("%w: batteryPercent out of range", ErrValidation)
	}
	if len(msg.RawAccSamples) > 30 {
		return fmt.Errorf("%w: too many accelerometer samples", ErrValidation)
	}

	now := time.Now().UnixMilli()
	const futureToleranceMS = 5 * 60 * 1000
	const pastToleranceMS = 7 * 24 * 60 * 60 * 1000
	if msg.Timestamp > now+futureToleranceMS {
		return fmt.Errorf("%w: timestamp too far in the future", ErrTemporal)
	}
	if msg.Timestamp < now-pastToleranceMS {
		return fmt.Errorf("%w: timestamp too old", ErrTemporal)
	}
	return nil
}

func (s *Server) handleGetPet(ctx context.Context, c *Client) {
	view, err := s.orchestrator.GetPet(ctx, c.deviceID)
	s.sendPetFrame(c, TypePetData, view, err)
}

func (s *Server) handleUpdatePet(ctx context.Context, c *Client, raw []byte) {
	var msg updatePetMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(petFrame{Type: TypePetUpdated, Success: false, Error: reasonFor(fmt.Errorf("%w: malformed updatePet", ErrValidation))})
		return
	}
	if msg.Name != nil && strings.TrimSpace(*msg.Name) == "" {
		c.Send(petFrame{Type: TypePetUpdated, Success: false, Error: reasonFor(fmt.Errorf("%w: empty name", ErrValidation))})
		return
	}
	view, err := s.orchestrator.UpdatePet(ctx, c.deviceID, msg.Name, msg.Cosmetic)
	s.sendPetFrame(c, TypePetUpdated, view, err)
}

func (s *Server) handleClaimResources(ctx context.Context, c *Client, raw []byte) {
	var msg claimResourcesMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(petFrame{Type: TypeResourcesClaimed, Success: false, Error: reasonFor(fmt.Errorf("%w: malformed claimResources", ErrValidation))})
		return
	}
	view, err := s.orchestrator.ClaimResources(ctx, c.deviceID, msg.Steps)
	s.sendPetFrame(c, TypeResourcesClaimed, view, err)
}

func (s *Server) handleFeedPet(ctx context.Context, c *Client) {
	view, err := s.orchestrator.FeedPet(ctx, c.deviceID)
	s.sendPetFrame(c, TypePetFed, view, err)
}

func (s *Server) handlePlayWithPet(ctx context.Context, c *Client) {
	view, err := s.orchestrator.PlayWithPet(ctx, c.deviceID)
	s.sendPetFrame(c, TypePetPlayed, view, err)
}

func (s *Server) sendPetFrame(c *Client, frameType string, view petstate.View, err error) {
	if err != nil {
		c.Send(petFrame{Type: frameType, Success: false, Error: reasonFor(mapPetErr(err))})
		return
	}
	p := view.Pet
	frame := petFrame{
		Type:    frameType,
		Success: true,
		Pet: &petPayload{
			PetName:       p.Name,
			DeviceID:      p.DeviceID,
			Level:         p.Level,
			Experience:    p.Experience,
			TotalStepsFed: p.TotalSteps,
			Happiness:     p.Happiness,
			Hunger:        p.Hunger,
			Health:        p.Health,
			Food:          p.Food,
			Energy:        p.Energy,
			PetObjectID:   p.ChainPetID,
			Cosmetic:      p.Cosmetic,
			OnChain:       view.OnChain,
		},
	}
	if view.ChainWarning != "" {
		frame.Chain = &chainNote{Warning: view.ChainWarning}
	}
	c.Send(frame)
}

func (s *Server) unregister(c *Client) {
	if c.deviceID != "" {
		s.registry.unbindIfCurrent(c.deviceID, c)
	}
	safeClose(c.send)
}

func (s *Server) chainConfigured() bool {
	_, disabled := s.chainClient.(chain.DisabledClient)
	return !disabled
}

func decodeHexField(field string, wantBytes int) ([]byte, error) {
	field = strings.TrimPrefix(strings.ToLower(field), "0x")
	decoded, err := hex.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("malformed hex field")
	}
	if len(decoded) != wantBytes {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantBytes, len(decoded))
	}
	return decoded, nil
}

func mapStoreErr(err error) error {
	switch err {
	case store.ErrNotFound:
		return fmt.Errorf("%w", ErrUnknownDevice)
	case store.ErrDuplicate:
		return fmt.Errorf("%w", ErrDuplicate)
	case store.ErrDeviceKeyInUse:
		return fmt.Errorf("%w: public key already bound to a different device", ErrValidation)
	case store.ErrDeviceNotRegistered:
		return fmt.Errorf("%w", ErrUnknownDevice)
	default:
		log.Error().Err(err).Msg("session: store error")
		return ErrInternal
	}
}

func mapPetErr(err error) error {
	switch err {
	case petstate.ErrStepsTooFew:
		return fmt.Errorf("%w: fewer than 100 steps offered", ErrValidation)
	case store.ErrInsufficientFood, store.ErrInsufficientEnergy:
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case store.ErrNotFound:
		return fmt.Errorf("%w", ErrUnknownDevice)
	default:
		log.Error().Err(err).Msg("session: pet state error")
		return ErrInternal
	}
}
