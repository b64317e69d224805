package canon

import "testing"

func samplePayload() StepDataPayload {
	return StepDataPayload{
		DeviceID:        "d1",
		StepCount:       100,
		TimestampMS:     1700000000000,
		FirmwareVersion: 100,
		BatteryPercent:  85,
		RawAccSamples:   [][3]float64{{1.0, 2.0, 3.0}},
	}
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	p := samplePayload()
	a := Canonicalize(p)
	b := Canonicalize(p)
	if string(a) != string(b) {
		t.Fatalf("canonicalize not deterministic: %q vs %q", a, b)
	}
}

func TestCanonicalizeKeyOrder(t *testing.T) {
	got := string(Canonicalize(samplePayload()))
	want := `{"batteryPercent":85,"deviceId":"d1","firmwareVersion":100,"rawAccSamples":[[1,2,3]],"stepCount":100,"timestamp":1700000000000}`
	if got != want {
		t.Fatalf("canonicalize = %q, want %q", got, want)
	}
}

func TestCanonicalizeFloatFormatting(t *testing.T) {
	p := samplePayload()
	p.RawAccSamples = [][3]float64{{1.5, -0.25, 0}}
	got := string(Canonicalize(p))
	want := `{"batteryPercent":85,"deviceId":"d1","firmwareVersion":100,"rawAccSamples":[[1.5,-0.25,0]],"stepCount":100,"timestamp":1700000000000}`
	if got != want {
		t.Fatalf("canonicalize = %q, want %q", got, want)
	}
}

func TestCanonicalizeEscapesDeviceID(t *testing.T) {
	p := samplePayload()
	p.DeviceID = `d"1`
	got := string(Canonicalize(p))
	want := `{"batteryPercent":85,"deviceId":"d\"1","firmwareVersion":100,"rawAccSamples":[[1,2,3]],"stepCount":100,"timestamp":1700000000000}`
	if got != want {
		t.Fatalf("canonicalize = %q, want %q", got, want)
	}
}
