// Command transceiverdemo wires a transceiver.Element to a remote peer
// (e.g. cmd/echoserver), pushes synthetic silence frames on a timer, and
// logs everything received on the source port. It demonstrates the
// lifecycle a host pipeline is expected to drive (spec.md §4.1).
package main

import (
	"flag"
	"time"

	"github.com/square-key-labs/wstransceiver/src/caps"
	"github.com/square-key-labs/wstransceiver/src/config"
	"github.com/square-key-labs/wstransceiver/src/frames"
	"github.com/square-key-labs/wstransceiver/src/logger"
	"github.com/square-key-labs/wstransceiver/src/transceiver"
)

func main() {
	uri := flag.String("uri", "ws://127.0.0.1:8085/", "remote websocket URI")
	runFor := flag.Duration("for", 30*time.Second, "how long to run before shutting down")
	flag.Parse()

	logger.Init()
	log := logger.WithPrefix("transceiverdemo")

	cfg := config.Default()
	cfg.URI = *uri

	el := transceiver.New(cfg)

	if err := el.Prepare(); err != nil {
		log.Error("prepare failed: %v", err)
		return
	}
	defer el.Unprepare()

	if err := el.Start(); err != nil {
		log.Error("start failed: %v", err)
		return
	}
	defer el.Pause()

	// Start clears caps_ready, so caps are pushed after it.
	if err := el.PushCaps(caps.FormatS16LE, cfg.SampleRate, cfg.Channels); err != nil {
		log.Error("push-caps failed: %v", err)
		return
	}

	go logEvents(el, log)
	go pushSilence(el, cfg, log)

	time.Sleep(*runFor)
	log.Info("demo run complete")
}

func logEvents(el *transceiver.Element, log *logger.Logger) {
	for f := range el.Events() {
		switch ev := f.(type) {
		case *frames.AudioFrame:
			log.Debug("audio pts=%v dur=%v bytes=%d", ev.Timestamp, ev.Duration, len(ev.Data))
		default:
			log.Info("event: %s", f.Name())
		}
	}
}

func pushSilence(el *transceiver.Element, cfg config.Config, log *logger.Logger) {
	ticker := time.NewTicker(cfg.FrameDuration())
	defer ticker.Stop()

	silence := make([]byte, 320) // 10ms @ 16kHz/16-bit mono as a stand-in payload size
	for range ticker.C {
		if err := el.PushAudio(silence); err != nil {
			log.Warn("push-audio failed: %v", err)
		}
	}
}
