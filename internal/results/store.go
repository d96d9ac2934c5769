// Package results keeps the latest biometric result per device in memory
// for the API to serve. Bounded: the least recently updated device is
// evicted when the limit is exceeded.
package results

import (
	"sync"
	"time"

	"biosense/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	byDevice  map[string]model.BiometricResult
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{
		byDevice:  make(map[string]model.BiometricResult),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(result model.BiometricResult) {
	if result.DeviceID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice[result.DeviceID] = result
	s.updatedAt[result.DeviceID] = time.Now().UTC()
	if len(s.byDevice) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(deviceID string) (model.BiometricResult, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.byDevice[deviceID]
	if !ok {
		return model.BiometricResult{}, time.Time{}, false
	}
	return result, s.updatedAt[deviceID], true
}

func (s *Store) GetAll() map[string]model.BiometricResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.BiometricResult, len(s.byDevice))
	for deviceID, result := range s.byDevice {
		out[deviceID] = result
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestDevice string
	var oldest time.Time
	for device, ts := range s.updatedAt {
		if oldestDevice == "" || ts.Before(oldest) {
			oldestDevice = device
			oldest = ts
		}
	}
	if oldestDevice != "" {
		delete(s.byDevice, oldestDevice)
		delete(s.updatedAt, oldestDevice)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice = make(map[string]model.BiometricResult)
	s.updatedAt = make(map[string]time.Time)
}
