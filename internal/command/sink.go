package command

import "github.com/jvegaf/symphony-engine/internal/jobs"

// jobSink adapts Bus to jobs.Sink, routing each job kind's
// progress/terminal events onto the topics named in §4.8.
type jobSink struct {
	bus *Bus
}

func (s jobSink) PublishProgress(ev jobs.ProgressEvent) {
	topic, ok := progressTopic(ev.Kind)
	if !ok {
		return
	}
	s.bus.Publish(Event{
		Topic: topic,
		JobID: ev.JobID,
		Payload: map[string]any{
			"progress": ev.Progress,
			"phase":    ev.Phase,
			"detail":   ev.Detail,
		},
	})
}

func (s jobSink) PublishTerminal(ev jobs.TerminalEvent) {
	switch ev.Kind {
	case jobs.KindWaveform:
		// GetWaveform publishes waveform:complete/error itself, with the
		// peaks payload the Waveform Cache's event carries — this
		// generic terminal event would be a content-free duplicate.
	case jobs.KindAnalyze:
		s.bus.Publish(Event{Topic: TopicAnalyzeComplete, JobID: ev.JobID, Payload: ev})
	case jobs.KindImport, jobs.KindConsolidate, jobs.KindBatchFixTags:
		if ev.State == jobs.StateCompleted {
			s.bus.Publish(Event{Topic: TopicCatalogChanged, JobID: ev.JobID, Payload: ev})
		}
	}
}

func progressTopic(k jobs.Kind) (Topic, bool) {
	switch k {
	case jobs.KindImport:
		return TopicImportProgress, true
	case jobs.KindWaveform:
		return TopicWaveformProgress, true
	case jobs.KindAnalyze:
		return TopicAnalyzeProgress, true
	case jobs.KindConsolidate:
		return TopicConsolidateProgress, true
	case jobs.KindTranscode:
		return TopicConversionProgress, true
	default:
		return "", false
	}
}
