package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the record to all sinks, returning the first error.
func (m *MultiSink) RecordRun(rec RunRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordStep forwards step records to sinks that take them.
func (m *MultiSink) RecordStep(rec StepRecord) error {
	for _, s := range m.Sinks {
		if sr, ok := s.(StepRecorder); ok {
			if err := sr.RecordStep(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDeviceRuns forwards device records to sinks that take them.
func (m *MultiSink) RecordDeviceRuns(recs []DeviceRecord) error {
	for _, s := range m.Sinks {
		if dr, ok := s.(DeviceRecorder); ok {
			if err := dr.RecordDeviceRuns(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTrip forwards trip records to sinks that take them.
func (m *MultiSink) RecordTrip(rec TripRecord) error {
	for _, s := range m.Sinks {
		if tr, ok := s.(TripRecorder); ok {
			if err := tr.RecordTrip(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
