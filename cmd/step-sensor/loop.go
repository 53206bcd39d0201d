package main

import (
	"errors"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/step-sensor/internal/collector"
	"github.com/sweeney/step-sensor/internal/gpio"
	"github.com/sweeney/step-sensor/internal/ingest"
	"github.com/sweeney/step-sensor/internal/logic"
	"github.com/sweeney/step-sensor/internal/mqtt"
	"github.com/sweeney/step-sensor/internal/status"
)

// errSourceClosed is returned when the sample stream ends.
var errSourceClosed = errors.New("sample source closed")

// stepBroadcaster is satisfied by *web.Hub.
type stepBroadcaster interface {
	BroadcastStep(event logic.StepEvent)
}

// outputs are the step sinks. Any of them may be nil.
type outputs struct {
	notifier   collector.StepNotifier
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	hub        stepBroadcaster
	led        gpio.Indicator
}

// step delivers one event to every sink. Failures are logged and never stop
// delivery to the remaining sinks.
func (o outputs) step(event logic.StepEvent) {
	if o.notifier != nil {
		if err := o.notifier.NotifyStep(event); err != nil {
			log.Printf("collector notify error: %v", err)
		}
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
	if o.hub != nil {
		o.hub.BroadcastStep(event)
	}
	if o.led != nil {
		if err := o.led.Pulse(); err != nil {
			log.Printf("led error: %v", err)
		}
	}
}

// system publishes a lifecycle event carrying a full status snapshot.
func (o outputs) system(tracker *status.Tracker, at time.Time, event, reason string, retained bool) {
	if o.publisher == nil {
		return
	}
	se := mqtt.SystemEvent{
		Timestamp: at,
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if tracker != nil {
		if o.mqttStatus != nil {
			tracker.SetMQTTConnected(o.mqttStatus.IsConnected())
		}
		se.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), event, reason)
	}
	if err := o.publisher.PublishSystem(se); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// runLoop is the only consumer of samples and the only caller of
// Detector.Process. It returns nil on a signal and errSourceClosed when the
// sample channel is closed.
func runLoop(out outputs, tracker *status.Tracker, stats *ingest.Stats, heartbeat time.Duration, now func() time.Time, samples <-chan logic.Sample, tick <-chan time.Time, sig <-chan os.Signal) error {
	detector := logic.NewDetector(now())

	refresh := func() {
		if tracker == nil {
			return
		}
		tracker.Update(detector.Phase(), detector.Counts(), len(samples))
		if stats != nil {
			s := stats.Snapshot()
			tracker.SetIngest(status.IngestCounts{Accepted: s.Accepted, Ignored: s.Ignored, Malformed: s.Malformed})
		}
		if out.mqttStatus != nil {
			tracker.SetMQTTConnected(out.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			refresh()
			out.system(tracker, now(), "SHUTDOWN", signalName(s), true)
			return nil

		case sample, ok := <-samples:
			if !ok {
				log.Printf("sample source closed, shutting down")
				if tracker != nil {
					tracker.SetCollectorConnected(false)
				}
				refresh()
				out.system(tracker, now(), "SHUTDOWN", "SOURCE_CLOSED", true)
				return errSourceClosed
			}

			event := detector.Process(sample)
			if event == nil {
				continue
			}
			log.Printf("step %d at %d", event.Count, event.Timestamp)
			if tracker != nil {
				tracker.RecordStep(*event)
			}
			out.step(*event)

		case <-tick:
			t := now()
			refresh()

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v phase=%s samples=%d steps=%d plateau_resets=%d",
					hb.Uptime, hb.Phase, hb.Counts.Samples, hb.Counts.Steps, hb.Counts.PlateauResets)
				out.system(tracker, hb.Timestamp, "HEARTBEAT", "", false)
			}
		}
	}
}
