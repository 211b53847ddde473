package classify

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	readingevents "github.com/getevidly/evidly-app-sub001/internal/telemetry/application/events"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

func f64(v float64) *float64 { return &v }

func TestTemperatureWalkInCooler(t *testing.T) {
	threshold := thresholds.Defaults()[thresholds.ZoneWalkInCooler]

	cases := []struct {
		name     string
		valueF   float64
		want     Condition
		kind     ViolationKind
		critical bool
	}{
		{name: "well inside", valueF: 36, want: CondInRange},
		{name: "just below buffer", valueF: 39, want: CondInRange},
		{name: "inside buffer", valueF: 39.5, want: CondWarning, kind: KindHighTemp},
		{name: "at max", valueF: 41, want: CondWarning, kind: KindHighTemp},
		{name: "above max", valueF: 41.1, want: CondViolation, kind: KindHighTemp},
		{name: "above max inside margin", valueF: 49, want: CondViolation, kind: KindHighTemp},
		{name: "past critical margin", valueF: 50.5, want: CondViolation, kind: KindHighTemp, critical: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Temperature(tc.valueF, threshold)
			if got.Condition != tc.want {
				t.Fatalf("Temperature(%v) condition = %s, want %s", tc.valueF, got.Condition, tc.want)
			}
			if got.Kind != tc.kind {
				t.Fatalf("Temperature(%v) kind = %s, want %s", tc.valueF, got.Kind, tc.kind)
			}
			if got.CriticalOverride != tc.critical {
				t.Fatalf("Temperature(%v) critical = %v, want %v", tc.valueF, got.CriticalOverride, tc.critical)
			}
		})
	}
}

func TestTemperatureHotHolding(t *testing.T) {
	threshold := thresholds.Defaults()[thresholds.ZoneHotHolding]

	cases := []struct {
		name     string
		valueF   float64
		want     Condition
		kind     ViolationKind
		critical bool
	}{
		{name: "hot enough", valueF: 160, want: CondInRange},
		{name: "at buffer edge", valueF: 140, want: CondInRange},
		{name: "inside buffer", valueF: 138, want: CondWarning, kind: KindLowTemp},
		{name: "at min", valueF: 135, want: CondWarning, kind: KindLowTemp},
		{name: "below min", valueF: 134, want: CondViolation, kind: KindLowTemp},
		{name: "past critical margin", valueF: 119, want: CondViolation, kind: KindLowTemp, critical: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Temperature(tc.valueF, threshold)
			if got.Condition != tc.want || got.Kind != tc.kind || got.CriticalOverride != tc.critical {
				t.Fatalf("Temperature(%v) = %+v, want condition=%s kind=%s critical=%v",
					tc.valueF, got, tc.want, tc.kind, tc.critical)
			}
		})
	}
}

// Classification must be monotone: a warmer cooler reading never classifies
// better, a colder hot-holding reading never classifies better.
func TestTemperatureMonotone(t *testing.T) {
	cooler := thresholds.Defaults()[thresholds.ZoneWalkInCooler]
	prev := -1
	for v := 30.0; v <= 60; v += 0.25 {
		rank := Temperature(v, cooler).Condition.Rank()
		if rank < prev {
			t.Fatalf("cooler condition rank dropped from %d to %d at %v", prev, rank, v)
		}
		prev = rank
	}

	hot := thresholds.Defaults()[thresholds.ZoneHotHolding]
	prev = -1
	for v := 180.0; v >= 100; v -= 0.25 {
		rank := Temperature(v, hot).Condition.Rank()
		if rank < prev {
			t.Fatalf("hot-holding condition rank dropped from %d to %d at %v", prev, rank, v)
		}
		prev = rank
	}
}

func TestHumidityDryStorage(t *testing.T) {
	threshold := thresholds.Defaults()[thresholds.ZoneDryStorage]

	cases := []struct {
		valuePct float64
		want     Condition
	}{
		{40, CondInRange},
		{56, CondWarning},
		{60, CondWarning},
		{61, CondViolation},
	}
	for _, tc := range cases {
		got := Humidity(tc.valuePct, threshold)
		if got.Condition != tc.want {
			t.Fatalf("Humidity(%v) = %s, want %s", tc.valuePct, got.Condition, tc.want)
		}
	}
}

func TestHumidityIgnoredWithoutCeiling(t *testing.T) {
	threshold := thresholds.Defaults()[thresholds.ZoneWalkInCooler]
	if got := Humidity(99, threshold); got.Condition != CondInRange {
		t.Fatalf("Humidity without ceiling = %s, want in_range", got.Condition)
	}
}

func TestEvaluateWorseDimensionWins(t *testing.T) {
	threshold := thresholds.Defaults()[thresholds.ZoneDryStorage]

	// Temperature fine, humidity violating.
	got, err := Evaluate(70, f64(70), threshold)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Condition != CondViolation || got.Kind != KindHumidity {
		t.Fatalf("got %+v, want humidity violation", got)
	}

	// Temperature violating, humidity fine.
	got, err = Evaluate(80, f64(40), threshold)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Condition != CondViolation || got.Kind != KindHighTemp {
		t.Fatalf("got %+v, want high_temp violation", got)
	}
}

func TestWorse(t *testing.T) {
	if Worse(CondInRange, CondWarning) != CondWarning {
		t.Fatal("warning should beat in_range")
	}
	if Worse(CondViolation, CondWarning) != CondViolation {
		t.Fatal("violation should beat warning")
	}
	if Worse(CondStale, CondInRange) != CondStale {
		t.Fatal("stale should beat in_range")
	}
}

type capturePublisher struct {
	events []any
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func testLogger() *log.Logger { return log.New(os.Stderr, "", 0) }

func TestServiceClassifiesSamples(t *testing.T) {
	publisher := &capturePublisher{}
	svc, err := NewService(thresholds.NewRegistry(), nil, publisher, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	evt := readingevents.ReadingReceived{
		SensorID:   "sensor-1",
		LocationID: "loc-1",
		ZoneKind:   thresholds.ZoneWalkInCooler,
		Samples: []readingevents.Sample{
			{TS: ts, TemperatureF: 36},
			{TS: ts.Add(time.Minute), TemperatureF: 44},
			{TS: ts.Add(2 * time.Minute), TemperatureF: 52, DefrostCycle: true},
		},
	}
	if err := svc.HandleReadingReceived(context.Background(), evt); err != nil {
		t.Fatalf("HandleReadingReceived: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("published %d events, want 2 (defrost sample skipped)", len(publisher.events))
	}
	first := publisher.events[0].(ReadingClassified)
	if first.Condition != CondInRange || first.SensorID != "sensor-1" {
		t.Fatalf("first classification = %+v", first)
	}
	second := publisher.events[1].(ReadingClassified)
	if second.Condition != CondViolation || second.Kind != KindHighTemp {
		t.Fatalf("second classification = %+v", second)
	}
	if !second.TS.Equal(ts.Add(time.Minute)) {
		t.Fatalf("classification ts = %v, want sample ts", second.TS)
	}
}

func TestServiceUnknownZoneKindRejected(t *testing.T) {
	publisher := &capturePublisher{}
	svc, err := NewService(thresholds.NewRegistry(), nil, publisher, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	evt := readingevents.ReadingReceived{
		SensorID: "sensor-1",
		ZoneKind: thresholds.ZoneKind("garage"),
		Samples:  []readingevents.Sample{{TS: time.Now(), TemperatureF: 36}},
	}
	err = svc.HandleReadingReceived(context.Background(), evt)
	if !errors.Is(err, thresholds.ErrUnknownZoneKind) {
		t.Fatalf("err = %v, want ErrUnknownZoneKind", err)
	}
	if len(publisher.events) != 0 {
		t.Fatalf("published %d events, want 0", len(publisher.events))
	}
}

func TestServiceSensorOverride(t *testing.T) {
	publisher := &capturePublisher{}
	overrides := map[string]thresholds.ZoneThreshold{
		"sensor-strict": {
			ZoneKind:         thresholds.ZoneWalkInCooler,
			MaxTempF:         f64(38),
			WarningBufferDeg: 1,
		},
	}
	svc, err := NewService(thresholds.NewRegistry(), overrides, publisher, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	evt := readingevents.ReadingReceived{
		SensorID: "sensor-strict",
		ZoneKind: thresholds.ZoneWalkInCooler,
		Samples:  []readingevents.Sample{{TS: time.Now(), TemperatureF: 39}},
	}
	if err := svc.HandleReadingReceived(context.Background(), evt); err != nil {
		t.Fatalf("HandleReadingReceived: %v", err)
	}
	got := publisher.events[0].(ReadingClassified)
	if got.Condition != CondViolation {
		t.Fatalf("condition with override = %s, want violation (39F over strict 38F max)", got.Condition)
	}
}
