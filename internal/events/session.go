package events

import (
	"time"

	"github.com/google/uuid"

	"biosense/internal/model"
)

// Session bounds a recording lifetime around a Detector. While not
// recording, samples and metric updates are dropped, not queued. Pausing
// does not close the in-progress interval; resume continues it.
type Session struct {
	ID       string
	detector *Detector

	recording bool
	startedAt time.Time

	events    []model.MuscleActivityEvent
	discarded int
}

func NewSession(cfg Config) *Session {
	return &Session{detector: NewDetector(cfg)}
}

// Start clears all detector state and counters and begins recording under
// a fresh session id.
func (s *Session) Start(now time.Time) {
	s.detector.Reset()
	s.events = nil
	s.discarded = 0
	s.ID = uuid.NewString()
	s.startedAt = now
	s.recording = true
}

// Stop flips the recording flag only; detector state survives.
func (s *Session) Stop() { s.recording = false }

// Pause is Stop under a name that signals intent to resume.
func (s *Session) Pause() { s.recording = false }

// Resume continues the currently open interval.
func (s *Session) Resume() { s.recording = true }

func (s *Session) Recording() bool { return s.recording }

// ProcessSample forwards to the detector while recording; otherwise the
// sample is dropped. Valid emissions accumulate on the session.
func (s *Session) ProcessSample(ir float64, ts time.Time, accel [3]int16, temperature float64) (Emission, bool) {
	if !s.recording {
		return Emission{}, false
	}
	em, closed := s.detector.ProcessSample(ir, ts, accel, temperature)
	if !closed {
		return Emission{}, false
	}
	if em.Discarded {
		s.discarded++
	} else {
		s.events = append(s.events, em.Event)
	}
	return em, true
}

func (s *Session) UpdateHeartRate(bpm float64, ts time.Time) {
	if s.recording {
		s.detector.UpdateHeartRate(bpm, ts)
	}
}

func (s *Session) UpdateSpO2(percent float64, ts time.Time) {
	if s.recording {
		s.detector.UpdateSpO2(percent, ts)
	}
}

func (s *Session) UpdateSleepState(state model.SleepState, ts time.Time) {
	if s.recording {
		s.detector.UpdateSleepState(state, ts)
	}
}

func (s *Session) UpdateTemperature(celsius float64, ts time.Time) {
	if s.recording {
		s.detector.UpdateTemperature(celsius, ts)
	}
}

// Events returns a copy of the valid events recorded so far.
func (s *Session) Events() []model.MuscleActivityEvent {
	out := make([]model.MuscleActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Stats are read-only reductions over the accumulated event list.
type Stats struct {
	SessionID          string    `json:"session_id"`
	StartedAt          time.Time `json:"started_at"`
	Recording          bool      `json:"recording"`
	ActivityCount      int       `json:"activity_count"`
	RestCount          int       `json:"rest_count"`
	DiscardedCount     int       `json:"discarded_count"`
	AverageDurationSec float64   `json:"average_duration_sec"`
	AverageIR          float64   `json:"average_ir"`
}

func (s *Session) Stats() Stats {
	st := Stats{
		SessionID:      s.ID,
		StartedAt:      s.startedAt,
		Recording:      s.recording,
		DiscardedCount: s.discarded,
	}
	if len(s.events) == 0 {
		return st
	}
	var durSum, irSum float64
	for _, ev := range s.events {
		switch ev.Type {
		case model.EventActivity:
			st.ActivityCount++
		case model.EventRest:
			st.RestCount++
		}
		durSum += ev.EndTs.Sub(ev.StartTs).Seconds()
		irSum += ev.AverageIR
	}
	n := float64(len(s.events))
	st.AverageDurationSec = durSum / n
	st.AverageIR = irSum / n
	return st
}
