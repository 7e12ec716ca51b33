package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"github.com/devaloi/chatrelay/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	clients := flag.Int("clients", 10, "Number of concurrent clients")
	group := flag.String("group", "", "Group to post to (default: a fresh one per run)")
	messages := flag.Int("messages", 10, "Messages per client")
	flag.Parse()

	run := uuid.NewString()[:8]
	if *group == "" {
		*group = "loadtest-" + run
	}
	log.Printf("Load test: %d clients, %d messages each, group=%s", *clients, *messages, *group)

	if err := setupGroup(*url, *group); err != nil {
		log.Fatalf("setup: %v", err)
	}

	var (
		connected int64
		sent      int64
		received  int64
		errors    int64
		latencies []time.Duration
		latencyMu sync.Mutex
		wg        sync.WaitGroup
	)

	start := time.Now()

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			user := fmt.Sprintf("user_%s_%d", run, id)
			conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
			if err != nil {
				atomic.AddInt64(&errors, 1)
				log.Printf("client %d: dial error: %v", id, err)
				return
			}
			defer conn.Close()
			atomic.AddInt64(&connected, 1)

			// Acks are matched to sends by request id.
			var pending sync.Map
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					_, data, err := conn.ReadMessage()
					if err != nil {
						return
					}
					resp, err := protocol.DecodeResponse(data)
					if err != nil {
						continue
					}
					switch resp.Action {
					case protocol.ReplyEvent:
						if resp.Event != nil && resp.Event.Message != nil {
							atomic.AddInt64(&received, 1)
						}
					case protocol.ReplyMessageSent:
						if at, ok := pending.LoadAndDelete(resp.ID); ok {
							latencyMu.Lock()
							latencies = append(latencies, time.Since(at.(time.Time)))
							latencyMu.Unlock()
						}
					case protocol.ReplyError:
						atomic.AddInt64(&errors, 1)
					}
				}
			}()

			write := func(req protocol.Request) error {
				data, err := protocol.Encode(req)
				if err != nil {
					return err
				}
				return conn.WriteMessage(websocket.TextMessage, data)
			}

			if err := write(protocol.Request{Action: protocol.ActionRegister, Username: user}); err != nil {
				atomic.AddInt64(&errors, 1)
				return
			}
			_ = write(protocol.Request{Action: protocol.ActionJoinGroup, GroupName: *group})
			time.Sleep(100 * time.Millisecond)

			for j := 0; j < *messages; j++ {
				reqID := fmt.Sprintf("%d-%d", id, j)
				pending.Store(reqID, time.Now())
				err := write(protocol.Request{
					Action:  protocol.ActionSendMessage,
					ID:      reqID,
					To:      *group,
					Message: fmt.Sprintf("msg %d from %s", j, user),
					IsGroup: true,
				})
				if err != nil {
					atomic.AddInt64(&errors, 1)
					return
				}
				atomic.AddInt64(&sent, 1)
				time.Sleep(10 * time.Millisecond)
			}

			// Wait a bit for remaining messages.
			time.Sleep(500 * time.Millisecond)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Calculate percentiles.
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println(color.New(color.FgCyan, color.OpBold).Render("\n=== Load Test Results ==="))
	fmt.Printf("Duration:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Clients:     %d connected\n", connected)
	fmt.Printf("Sent:        %d messages\n", sent)
	fmt.Printf("Acked:       %d messages\n", len(latencies))
	fmt.Printf("Received:    %d messages\n", received)
	if errors > 0 {
		color.Red.Printf("Errors:      %d\n", errors)
	} else {
		color.Green.Printf("Errors:      %d\n", errors)
	}
	if len(latencies) > 0 {
		fmt.Printf("Latency p50: %s\n", percentile(latencies, 50))
		fmt.Printf("Latency p95: %s\n", percentile(latencies, 95))
		fmt.Printf("Latency p99: %s\n", percentile(latencies, 99))
	}
	fmt.Printf("Throughput:  %.0f msgs/sec\n", float64(sent)/elapsed.Seconds())
}

// setupGroup creates the target group once; an existing group is fine.
func setupGroup(url, group string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	data, err := protocol.Encode(protocol.Request{Action: protocol.ActionCreateGroup, GroupName: group})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		return err
	}
	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		return err
	}
	if resp.Action == protocol.ReplyError && resp.Code != "ALREADY_EXISTS" {
		return fmt.Errorf("create group: %s", resp.Error)
	}
	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
