// Command msgq-sub attaches to a named channel and prints every
// message it receives.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/NorthFat/msgq/backend"
	"github.com/NorthFat/msgq/internal/shm"
)

func main() {
	endpoint := flag.String("endpoint", "example", "channel name")
	prefix := flag.String("prefix", "", "namespace prefix under /dev/shm")
	conflate := flag.Bool("conflate", false, "skip to newest message when behind")
	timeoutMs := flag.Int("timeout-ms", shm.DefaultTimeoutMs, "Recv timeout in milliseconds (<0 = forever, 0 = single poll)")
	flag.Parse()

	sub, err := backend.NewSharedMemSubscriber(backend.DefaultRoot, *prefix, *endpoint, 0, *conflate)
	if err != nil {
		log.Fatalf("msgq-sub: %v", err)
	}
	defer sub.Close()

	for {
		msg, err := sub.Recv(*timeoutMs, *conflate)
		if err != nil {
			log.Printf("msgq-sub: recv: %v", err)
			continue
		}
		if msg == nil {
			continue
		}
		fmt.Printf("%s\n", msg)
	}
}
