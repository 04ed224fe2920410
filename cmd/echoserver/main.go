// Command echoserver is a demo remote peer for manual exercising of the
// transceiver element: it accepts websocket connections, echoes every
// binary frame it receives, and, when -clear-every is set, emits a
// {"type":"clear"} control message on that interval to simulate a remote
// barge-in.
//
// This is explicitly a demo, not part of the element itself (spec.md §1
// places "command-line examples" and "the remote server's business
// logic" out of scope for the core).
package main

import (
	"flag"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/wstransceiver/src/logger"
)

func main() {
	addr := flag.String("addr", ":8085", "listen address")
	clearEvery := flag.Duration("clear-every", 0, "emit {\"type\":\"clear\"} on this interval (0 disables)")
	flag.Parse()

	logger.Init()
	log := logger.WithPrefix("echoserver")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		log.Info("peer connected from %s", r.RemoteAddr)

		// gorilla/websocket requires writes to a single conn be serialized;
		// the echo write below and clearLoop's write share this conn.
		var writeMu sync.Mutex

		done := make(chan struct{})
		if *clearEvery > 0 {
			go clearLoop(conn, &writeMu, *clearEvery, done)
		}
		defer close(done)

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				log.Info("peer disconnected: %v", err)
				return
			}
			if msgType == websocket.BinaryMessage {
				writeMu.Lock()
				err := conn.WriteMessage(websocket.BinaryMessage, data)
				writeMu.Unlock()
				if err != nil {
					log.Warn("echo write failed: %v", err)
					return
				}
			}
		}
	})

	log.Info("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Error("server exited: %v", err)
	}
}

func clearLoop(conn *websocket.Conn, writeMu *sync.Mutex, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"clear"}`))
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
