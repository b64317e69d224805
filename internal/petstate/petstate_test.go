package petstate

import (
	"testing"
	"time"

	"witnessgate/internal/store"
)

func TestApplyDecayHungerDropsHourly(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 50, Happiness: 50, Health: 100, LastFedAt: now.Add(-3 * time.Hour), LastPlayedAt: now}

	decayed := applyDecay(p, now)

	if decayed.Hunger != 47 {
		t.Fatalf("hunger = %d, want 47", decayed.Hunger)
	}
}

func TestApplyDecayHappinessDropsEveryTwoHours(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 50, Happiness: 50, Health: 100, LastFedAt: now, LastPlayedAt: now.Add(-5 * time.Hour)}

	decayed := applyDecay(p, now)

	if decayed.Happiness != 48 {
		t.Fatalf("happiness = %d, want 48 (2 whole 2h periods elapsed)", decayed.Happiness)
	}
}

func TestApplyDecayHealthFloorsAtZero(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 10, Happiness: 10, Health: 0, LastFedAt: now, LastPlayedAt: now}

	decayed := applyDecay(p, now)

	if decayed.Health != 0 {
		t.Fatalf("health = %d, want floored at 0", decayed.Health)
	}
}

func TestApplyDecayHealthRisesWhenThriving(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 90, Happiness: 90, Health: 50, LastFedAt: now, LastPlayedAt: now}

	decayed := applyDecay(p, now)

	if decayed.Health != 51 {
		t.Fatalf("health = %d, want 51", decayed.Health)
	}
}

func TestApplyDecayHealthCeilsAt100(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 90, Happiness: 90, Health: 100, LastFedAt: now, LastPlayedAt: now}

	decayed := applyDecay(p, now)

	if decayed.Health != 100 {
		t.Fatalf("health = %d, want ceiled at 100", decayed.Health)
	}
}

func TestApplyDecayNoElapsedTimeIsNoop(t *testing.T) {
	now := time.Now()
	p := store.PetState{Hunger: 50, Happiness: 50, Health: 100, LastFedAt: now, LastPlayedAt: now}

	decayed := applyDecay(p, now)

	if decayed.Hunger != 50 || decayed.Happiness != 50 || decayed.Health != 100 {
		t.Fatalf("expected no change with zero elapsed time, got %+v", decayed)
	}
}

func TestClampPercentBounds(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{50, 50},
		{100, 100},
		{150, 100},
	}
	for _, c := range cases {
		if got := clampPercent(c.in); got != c.want {
			t.Fatalf("clampPercent(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
