package session

// Inbound frame types (spec.md §6).
const (
	TypeRegister       = "register"
	TypeAuthenticate   = "authenticate"
	TypeStepData       = "step_data"
	TypePing           = "ping"
	TypeGetPet         = "getPet"
	TypeUpdatePet      = "updatePet"
	TypeClaimResources = "claimResources"
	TypeFeedPet        = "feedPet"
	TypePlayWithPet    = "playWithPet"
)

// Outbound frame types (spec.md §6).
const (
	TypeWelcome          = "welcome"
	TypeRegisterResponse = "register_response"
	TypeAuthResponse     = "auth_response"
	TypeStepDataResponse = "step_data_response"
	TypePong             = "pong"
	TypePetData          = "pet_data"
	TypePetUpdated       = "pet_updated"
	TypeResourcesClaimed = "resources_claimed"
	TypePetFed           = "pet_fed"
	TypePetPlayed        = "pet_played"
	TypePetError         = "pet_error"
	TypeError            = "error"
)

type envelope struct {
	Type string `json:"type"`
}

type registerMessage struct {
	Type      string `json:"type"`
	DeviceID  string `json:"deviceId"`
	PublicKey string `json:"publicKey"`
}

type authenticateMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
}

type stepDataMessage struct {
	Type            string        `json:"type"`
	DeviceID        string        `json:"deviceId"`
	StepCount       int           `json:"stepCount"`
	Timestamp       int64         `json:"timestamp"`
	FirmwareVersion int           `json:"firmwareVersion"`
	BatteryPercent  int           `json:"batteryPercent"`
	RawAccSamples   [][3]float64  `json:"rawAccSamples"`
	Signature       string        `json:"signature"`
}

type claimResourcesMessage struct {
	Type  string `json:"type"`
	Steps int64  `json:"steps"`
}

// updatePetMessage carries the only client-settable pet fields
// (spec.md §4.3's updatePet(deviceId, fields)); every bounded or
// derived field stays server-authoritative. Omitted fields are left
// unchanged.
type updatePetMessage struct {
	Type     string  `json:"type"`
	Name     *string `json:"name,omitempty"`
	Cosmetic *string `json:"cosmetic,omitempty"`
}

type welcomeFrame struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocolVersion"`
}

type registerResponse struct {
	Type            string      `json:"type"`
	Success         bool        `json:"success"`
	Error           string      `json:"error,omitempty"`
	DeviceID        string      `json:"deviceId,omitempty"`
	Chain           *chainNote  `json:"chain,omitempty"`
}

type authResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

type stepDataResponse struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	DataID    int64  `json:"dataId,omitempty"`
	StepCount int    `json:"stepCount,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
}

type pongFrame struct {
	Type        string `json:"type"`
	TimestampMS int64  `json:"timestampMs"`
}

type chainNote struct {
	Warning string `json:"warning,omitempty"`
	TxID    string `json:"txId,omitempty"`
}

type petPayload struct {
	PetName        string `json:"pet_name"`
	DeviceID       string `json:"device_id"`
	Level          int    `json:"level"`
	Experience     int    `json:"experience"`
	TotalStepsFed  int64  `json:"total_steps_fed"`
	Happiness      int    `json:"happiness"`
	Hunger         int    `json:"hunger"`
	Health         int    `json:"health"`
	Food           int    `json:"food"`
	Energy         int    `json:"energy"`
	PetObjectID    *string `json:"pet_object_id,omitempty"`
	Cosmetic       *string `json:"cosmetic,omitempty"`
	OnChain        bool   `json:"on_chain"`
}

type petFrame struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Pet     *petPayload `json:"pet,omitempty"`
	Chain   *chainNote  `json:"chain,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
