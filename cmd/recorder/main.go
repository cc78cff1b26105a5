// Command recorder is a stream-socket client that records the biometric
// events it receives into a durable JSON buffer file, flushing in batches
// with an atomic replace so dashboard readers never see a torn file.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsegrid/biometric_replay_server/internal/models"
	"github.com/pulsegrid/biometric_replay_server/internal/persist"
)

func main() {
	addr := flag.String("addr", "localhost:5000", "Replay server TCP address")
	output := flag.String("output", "biometric_buffer/pulse_temp.json", "Buffer file path")
	batchSize := flag.Int("batch", persist.DefaultBatchSize, "Records per flush")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	recorder := persist.NewRecorder(*output, *batchSize)

	// Final flush of any partial batch on shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		if err := recorder.Close(); err != nil {
			log.Printf("Final flush failed: %v", err)
		}
		os.Exit(0)
	}()

	log.Printf("Recording events from %s to %s", *addr, *output)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var ev models.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			log.Printf("Skipping malformed event: %v", err)
			continue
		}
		if ev.IsLifecycle() {
			continue
		}
		if err := recorder.Record(ev); err != nil {
			// Keep recording; the buffered records retry on the next flush
			log.Printf("Flush failed, will retry: %v", err)
		}
	}

	if err := recorder.Close(); err != nil {
		log.Printf("Final flush failed: %v", err)
	}
}
