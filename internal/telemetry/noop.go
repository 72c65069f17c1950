package telemetry

// NoOpSink discards every event. Used when no collector is wired in.
type NoOpSink struct{}

func (NoOpSink) OnAccess(string, bool) {}
func (NoOpSink) OnSweep(string, int)   {}
func (NoOpSink) OnEvict(string, int)   {}
