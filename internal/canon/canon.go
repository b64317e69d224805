// Package canon implements the deterministic byte-serialization used
// as the Ed25519 signing input for device step-data payloads
// (spec.md §4.1). The canonical form must be byte-identical between
// the device firmware and this server for every payload the device
// ever signs — there is no fuzzy fallback.
package canon

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StepDataPayload is the keyed attribute set that gets signed, in the
// exact field set spec.md §6 names: deviceId, stepCount, timestamp,
// firmwareVersion, batteryPercent, rawAccSamples. The signature field
// itself is never part of the signed object.
type StepDataPayload struct {
	DeviceID        string
	StepCount       int
	TimestampMS     int64
	FirmwareVersion int
	BatteryPercent  int
	RawAccSamples   [][3]float64
}

// Canonicalize produces the compact, sorted-key JSON byte sequence
// that the device signs and this server re-derives to verify against.
// Keys are emitted in fixed lexicographic order (batteryPercent,
// deviceId, firmwareVersion, rawAccSamples, stepCount, timestamp) —
// the same fixed order the firmware's buildCanonicalJSON uses, since
// there are only ever these six keys.
func Canonicalize(p StepDataPayload) []byte {
	var b strings.Builder
	b.WriteByte('{')

	b.WriteString(`"batteryPercent":`)
	b.WriteString(strconv.Itoa(p.BatteryPercent))
	b.WriteByte(',')

	b.WriteString(`"deviceId":`)
	writeJSONString(&b, p.DeviceID)
	b.WriteByte(',')

	b.WriteString(`"firmwareVersion":`)
	b.WriteString(strconv.Itoa(p.FirmwareVersion))
	b.WriteByte(',')

	b.WriteString(`"rawAccSamples":`)
	writeSamples(&b, p.RawAccSamples)
	b.WriteByte(',')

	b.WriteString(`"stepCount":`)
	b.WriteString(strconv.Itoa(p.StepCount))
	b.WriteByte(',')

	b.WriteString(`"timestamp":`)
	b.WriteString(strconv.FormatInt(p.TimestampMS, 10))

	b.WriteByte('}')
	return []byte(b.String())
}

func writeSamples(b *strings.Builder, samples [][3]float64) {
	b.WriteByte('[')
	for i, s := range samples {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range s {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatFloat(v))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

// formatFloat emits the shortest decimal that round-trips v, the way
// the firmware's JSON serializer formats accelerometer samples: whole
// numbers with no trailing ".0", otherwise the minimal precision that
// survives a parse/format round trip. See SPEC_FULL.md's open-question
// resolution on canonical numeric form.
func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSONString(b *strings.Builder, s string) {
	out, err := json.Marshal(s)
	if err != nil {
		// deviceId is always a plain UTF-8 string; Marshal on a
		// string value cannot fail.
		panic(fmt.Sprintf("canon: marshal device id: %v", err))
	}
	b.Write(out)
}

// SortedKeys is exposed for tests and for any future signed-object
// shape; it documents the contract that key order is lexicographic
// and insertion order of the input must not affect output.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
