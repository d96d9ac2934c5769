package results

import (
	"testing"

	"biosense/internal/model"
)

func TestUpdateReplacesLatest(t *testing.T) {
	s := NewStore(10)
	s.Update(model.BiometricResult{DeviceID: "a", HeartRateBPM: 70})
	s.Update(model.BiometricResult{DeviceID: "a", HeartRateBPM: 75})

	got, _, ok := s.Get("a")
	if !ok || got.HeartRateBPM != 75 {
		t.Fatalf("latest result = %+v (ok=%v)", got, ok)
	}
	if len(s.GetAll()) != 1 {
		t.Fatalf("expected a single device")
	}
}

func TestEvictionAtLimit(t *testing.T) {
	s := NewStore(2)
	s.Update(model.BiometricResult{DeviceID: "a"})
	s.Update(model.BiometricResult{DeviceID: "b"})
	s.Update(model.BiometricResult{DeviceID: "c"})

	if _, _, ok := s.Get("a"); ok {
		t.Fatalf("oldest device should be evicted")
	}
	if _, _, ok := s.Get("c"); !ok {
		t.Fatalf("newest device missing")
	}
}

func TestClear(t *testing.T) {
	s := NewStore(10)
	s.Update(model.BiometricResult{DeviceID: "a"})
	s.Clear()
	if len(s.GetAll()) != 0 {
		t.Fatalf("store not cleared")
	}
}
