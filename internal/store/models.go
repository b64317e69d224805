package store

import "time"

// Device statuses.
const (
	DeviceActive    = "active"
	DeviceSuspended = "suspended"
)

type Device struct {
	ID               string
	PublicKey        []byte
	RegisteredAt     time.Time
	LastSeenAt       time.Time
	TotalSteps       int64
	TotalSubmissions int64
	Status           string
	ChainDeviceID    *string
}

type Sample struct {
	X, Y, Z float64
}

type SubmissionRecord struct {
	ID              int64
	DeviceID        string
	StepCount       int
	TimestampMS     int64
	FirmwareVersion int
	BatteryPercent  int
	RawAccSamples   []Sample
	Signature       []byte
	Verified        bool
	ReceivedAt      time.Time
	Submitted       bool
	ChainTxID       *string
}

// Pet level thresholds on cumulative experience.
var PetLevelThresholds = [...]int{100, 500, 2000, 5000}

type PetState struct {
	ID            string
	DeviceID      string
	Name          string
	Level         int
	Experience    int
	TotalSteps    int64
	Happiness     int
	Hunger        int
	Health        int
	Food          int
	Energy        int
	CreatedAt     time.Time
	LastFedAt     time.Time
	LastPlayedAt  time.Time
	Cosmetic      *string
	ChainPetID    *string
}

// LevelForExperience returns the monotonic level implied by an
// experience total, per the thresholds in spec.md §3.
func LevelForExperience(xp int) int {
	level := 0
	for _, threshold := range PetLevelThresholds {
		if xp >= threshold {
			level++
		}
	}
	return level
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPercent(v int) int { return clamp(v, 0, 100) }
