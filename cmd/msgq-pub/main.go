// Command msgq-pub publishes incrementing counter messages to a named
// channel, for exercising a subscriber or the msgqctl monitor by hand.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/NorthFat/msgq/backend"
)

func main() {
	endpoint := flag.String("endpoint", "example", "channel name")
	prefix := flag.String("prefix", "", "namespace prefix under /dev/shm")
	rateHz := flag.Float64("rate", 10, "messages per second")
	flag.Parse()

	pub, err := backend.NewSharedMemPublisher(backend.DefaultRoot, *prefix, *endpoint, 0)
	if err != nil {
		log.Fatalf("msgq-pub: %v", err)
	}
	defer pub.Close()

	interval := time.Duration(float64(time.Second) / *rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for range ticker.C {
		payload := []byte(fmt.Sprintf("seq=%d t=%s", seq, time.Now().Format(time.RFC3339Nano)))
		if err := pub.Send(payload); err != nil {
			log.Printf("msgq-pub: send: %v", err)
			continue
		}
		seq++
	}
}
