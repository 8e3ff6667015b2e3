// Command msgq-fakedrv demonstrates the FakeGate rendezvous: it runs a
// publisher, a fake-gated subscriber, and the driver loop that steps
// the subscriber forward one message at a time, all in one process,
// as a worked example of how a test harness pins down subscriber
// timing instead of racing the publisher's real clock.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/NorthFat/msgq/backend"
)

func main() {
	endpoint := flag.String("endpoint", "fakedrv-demo", "channel name")
	count := flag.Int("count", 5, "number of messages to drive through")
	flag.Parse()

	pub, err := backend.NewSharedMemPublisher(backend.DefaultRoot, "", *endpoint, 0)
	if err != nil {
		log.Fatalf("msgq-fakedrv: publisher: %v", err)
	}
	defer pub.Close()

	sub, err := backend.NewFakeSubscriber(backend.DefaultRoot, "", *endpoint, 0, false,
		backend.DefaultFakeRoot, "", "fakedrv-demo")
	if err != nil {
		log.Fatalf("msgq-fakedrv: subscriber: %v", err)
	}
	defer sub.Close()
	sub.Pair().SetEnabled(true)

	recvResult := make(chan struct {
		msg []byte
		err error
	}, 1)

	// Drop any recv_called notification an earlier run left in the
	// state file, before any subscriber goroutine can post a new one.
	sub.Pair().RecvCalled().Clear()

	for i := 0; i < *count; i++ {
		go func() {
			msg, err := sub.Recv(-1, false)
			recvResult <- struct {
				msg []byte
				err error
			}{msg, err}
		}()

		// Wait for the subscriber to announce it has called Recv
		// before the driver publishes and releases it, so the
		// subscriber is guaranteed to observe exactly this message.
		if err := sub.Pair().RecvCalled().Wait(2 * time.Second); err != nil {
			log.Fatalf("msgq-fakedrv: waiting for recv_called: %v", err)
		}
		sub.Pair().RecvCalled().Clear()

		payload := []byte(fmt.Sprintf("step=%d", i))
		if err := pub.Send(payload); err != nil {
			log.Fatalf("msgq-fakedrv: send: %v", err)
		}
		sub.Pair().RecvReady().Set()

		res := <-recvResult
		if res.err != nil {
			log.Fatalf("msgq-fakedrv: recv: %v", res.err)
		}
		fmt.Printf("driven step %d: %s\n", i, res.msg)
	}
}
