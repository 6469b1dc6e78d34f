package sinks

// Multi fans every event out to a fixed set of Sinks, e.g. a Console for
// the operator's terminal plus an MQTT sink for a remote dashboard.
type Multi []Sink

func (m Multi) Log(level Level, message string) {
	for _, s := range m {
		s.Log(level, message)
	}
}

func (m Multi) Fatal(message string) {
	for _, s := range m {
		s.Fatal(message)
	}
}

func (m Multi) Progress(phase string, step, nmax int) {
	for _, s := range m {
		s.Progress(phase, step, nmax)
	}
}
