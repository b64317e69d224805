// device-sim is a standalone test client for the gateway's WebSocket
// device protocol: generates an Ed25519 keypair, registers,
// authenticates, and periodically signs and submits step data. It does
// not read or print the step_data responses. Grounded on the teacher's
// cmd/dumb-bot dial/decide-loop shape, generalized from the poker
// join/state_update/action exchange to the device register/
// authenticate/step_data exchange.
package main

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"witnessgate/internal/canon"
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
	Type            string      `json:"type"`
	DeviceID        string      `json:"deviceId"`
	StepCount       int         `json:"stepCount"`
	Timestamp       int64       `json:"timestamp"`
	FirmwareVersion int         `json:"firmwareVersion"`
	BatteryPercent  int         `json:"batteryPercent"`
	RawAccSamples   [][3]float64 `json:"rawAccSamples"`
	Signature       string      `json:"signature"`
}

func main() {
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")
	deviceID := getenv("DEVICE_ID", "sim-device-1")

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	send(conn, registerMessage{Type: "register", DeviceID: deviceID, PublicKey: "0x" + hex.EncodeToString(pub)})
	waitFor(conn, "register_response")

	send(conn, authenticateMessage{Type: "authenticate", DeviceID: deviceID})
	waitFor(conn, "auth_response")

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	battery := 100
	for range ticker.C {
		if battery > 1 {
			battery--
		}
		stepCount := 50 + rnd.Intn(200)
		samples := randomSamples(rnd, 10)
		ts := time.Now().UnixMilli()

		payload := canon.StepDataPayload{
			DeviceID:        deviceID,
			StepCount:       stepCount,
			TimestampMS:     ts,
			FirmwareVersion: 1,
			BatteryPercent:  battery,
			RawAccSamples:   samples,
		}
		digest := sha256.Sum256(canon.Canonicalize(payload))
		signature := ed25519.Sign(priv, digest[:])

		send(conn, stepDataMessage{
			Type:            "step_data",
			DeviceID:        deviceID,
			StepCount:       stepCount,
			Timestamp:       ts,
			FirmwareVersion: 1,
			BatteryPercent:  battery,
			RawAccSamples:   samples,
			Signature:       "0x" + hex.EncodeToString(signature),
		})
	}
}

func randomSamples(rnd *rand.Rand, n int) [][3]float64 {
	samples := make([][3]float64, n)
	for i := range samples {
		samples[i] = [3]float64{rnd.Float64()*2 - 1, rnd.Float64()*2 - 1, rnd.Float64()*2 - 1}
	}
	return samples
}

func send(conn *websocket.Conn, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Fatal(err)
	}
}

func waitFor(conn *websocket.Conn, wantType string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Fatal(err)
		}
		var base envelope
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		if base.Type == wantType {
			return
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
