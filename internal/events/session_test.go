package events

import (
	"testing"

	"biosense/internal/model"
)

func TestSessionDropsWhileNotRecording(t *testing.T) {
	s := NewSession(Config{IRThreshold: 150})
	// Not started: everything is a no-op.
	if _, ok := s.ProcessSample(100, at(0), [3]int16{}, 36.0); ok {
		t.Fatalf("sample processed before start")
	}
	s.UpdateHeartRate(70, at(0))
	if _, started := s.detector.CurrentType(); started {
		t.Fatalf("detector touched before start")
	}

	s.Start(at(0))
	if s.ID == "" {
		t.Fatalf("session id not assigned")
	}
	s.UpdateTemperature(36.0, at(0))
	s.ProcessSample(100, at(1), [3]int16{}, 36.0)
	em, ok := s.ProcessSample(200, at(2), [3]int16{}, 36.0)
	if !ok || em.Event.Type != model.EventRest {
		t.Fatalf("expected rest interval close, ok=%v", ok)
	}
	if len(s.Events()) != 1 {
		t.Fatalf("valid event not accumulated")
	}
}

func TestPauseKeepsOpenInterval(t *testing.T) {
	s := NewSession(Config{IRThreshold: 150})
	s.Start(at(0))
	s.UpdateTemperature(36.0, at(0))
	s.ProcessSample(200, at(1), [3]int16{}, 36.0) // opens Activity

	s.Pause()
	if _, ok := s.ProcessSample(100, at(2), [3]int16{}, 36.0); ok {
		t.Fatalf("paused session processed a sample")
	}

	s.Resume()
	// The Activity interval from before the pause is still open; this
	// Rest sample closes it.
	em, ok := s.ProcessSample(100, at(3), [3]int16{}, 36.0)
	if !ok {
		t.Fatalf("expected close after resume")
	}
	if em.Event.Type != model.EventActivity {
		t.Fatalf("closed type = %s", em.Event.Type)
	}
}

func TestStartResetsBetweenRecordings(t *testing.T) {
	s := NewSession(Config{IRThreshold: 150})
	s.Start(at(0))
	s.UpdateTemperature(36.0, at(0))
	s.ProcessSample(100, at(1), [3]int16{}, 36.0)
	s.ProcessSample(200, at(2), [3]int16{}, 36.0)
	first := s.ID
	if len(s.Events()) != 1 {
		t.Fatalf("expected one event in first recording")
	}

	s.Stop()
	s.Start(at(10))
	if s.ID == first {
		t.Fatalf("session id reused")
	}
	if len(s.Events()) != 0 {
		t.Fatalf("events survived restart")
	}
	if _, started := s.detector.CurrentType(); started {
		t.Fatalf("detector state survived restart")
	}
}

func TestSessionStats(t *testing.T) {
	s := NewSession(Config{IRThreshold: 150})
	s.Start(at(0))
	s.UpdateTemperature(36.0, at(0))
	// Rest 2s (avg 100), Activity 3s (avg 200), then open interval.
	s.ProcessSample(100, at(0), [3]int16{}, 36.0)
	s.ProcessSample(100, at(1), [3]int16{}, 36.0)
	s.ProcessSample(200, at(2), [3]int16{}, 36.0)
	s.ProcessSample(200, at(3), [3]int16{}, 36.0)
	s.ProcessSample(200, at(4), [3]int16{}, 36.0)
	s.ProcessSample(100, at(5), [3]int16{}, 36.0)

	st := s.Stats()
	if st.ActivityCount != 1 || st.RestCount != 1 {
		t.Fatalf("counts: %+v", st)
	}
	if st.AverageIR != 150 {
		t.Fatalf("average IR = %v", st.AverageIR)
	}
	if st.AverageDurationSec != 2.5 {
		t.Fatalf("average duration = %v", st.AverageDurationSec)
	}
	if !st.Recording {
		t.Fatalf("stats should report recording")
	}
}

func TestStoreBoundedAndOrdered(t *testing.T) {
	store := NewStore(3)
	for i := 1; i <= 5; i++ {
		store.Add(model.MuscleActivityEvent{EventNumber: i, EndTs: at(i)})
	}
	list := store.List(0)
	if len(list) != 3 {
		t.Fatalf("store holds %d events", len(list))
	}
	if list[0].EventNumber != 3 || list[2].EventNumber != 5 {
		t.Fatalf("eviction order wrong: %+v", list)
	}
	since := store.Since(at(5))
	if len(since) != 1 || since[0].EventNumber != 5 {
		t.Fatalf("since filter wrong: %+v", since)
	}
}
