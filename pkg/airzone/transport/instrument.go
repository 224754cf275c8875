package transport

import "time"

// Instrument receives timing (and optionally failure) notifications for
// every wire call a transport makes.
type Instrument struct {
	RecordTime  func(fnName string, callTime time.Duration)
	RecordError func(fnName string, err error)
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(name, duration)
			}
		}
	}
}

func RecordError(name string, err error, instrument []Instrument) {
	if err == nil {
		return
	}
	for i := range instrument {
		if instrument[i].RecordError != nil {
			instrument[i].RecordError(name, err)
		}
	}
}
