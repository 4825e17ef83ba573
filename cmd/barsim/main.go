// cmd/barsim — Demo WebSocket bar server.
// Broadcasts a simulated OHLCV bar stream for running indstream without a
// real market feed.
//
// Bar JSON shape is identical to model.Bar:
//
//	{"open":101.2,"high":101.9,"low":100.8,"close":101.5,"volume":12,"seq":4807}
//
// Within one bar interval the same seq is re-broadcast on every tick with
// an updated close/high/low (a repaint); when the interval rolls over, seq
// increments and a fresh bar opens at the previous close.
//
// Config (env vars):
//
//	BARSIM_ADDR       — listen address            (default: ":9001")
//	BAR_INTERVAL_MS   — bar length milliseconds   (default: "1000")
//	TICK_INTERVAL_MS  — repaint tick milliseconds (default: "200")
//	START_PRICE       — opening price             (default: "100")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ta-streamv1/internal/model"
)

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, skip
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[barsim] upgrade error: %v", err)
			return
		}
		log.Printf("[barsim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[barsim] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends bar JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Bar generator ────────────────────────────────────────────────────────────

// generator simulates one instrument: a forming bar repainted every tick
// and sealed every bar interval.
type generator struct {
	rng *rand.Rand
	bar model.Bar
}

func newGenerator(startPrice float64) *generator {
	g := &generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	g.bar = model.Bar{
		Open: startPrice, High: startPrice, Low: startPrice, Close: startPrice,
		Seq: 1,
	}
	return g
}

// tick applies a small random walk to the forming bar and returns it.
func (g *generator) tick() model.Bar {
	pct := (g.rng.Float64()*0.2 - 0.1) / 100.0
	price := g.bar.Close * (1 + pct)
	if price < 0.01 {
		price = 0.01
	}

	g.bar.Close = price
	if price > g.bar.High {
		g.bar.High = price
	}
	if price < g.bar.Low {
		g.bar.Low = price
	}
	g.bar.Volume += float64(g.rng.Intn(100) + 1)
	return g.bar
}

// roll seals the current bar and opens the next one at the last close.
func (g *generator) roll() model.Bar {
	open := g.bar.Close
	g.bar = model.Bar{
		Open: open, High: open, Low: open, Close: open,
		Seq: g.bar.Seq + 1,
	}
	return g.tick()
}

func runGenerator(h *hub, g *generator, barIntervalMs, tickIntervalMs int) {
	tickT := time.NewTicker(time.Duration(tickIntervalMs) * time.Millisecond)
	barT := time.NewTicker(time.Duration(barIntervalMs) * time.Millisecond)
	defer tickT.Stop()
	defer barT.Stop()

	send := func(b model.Bar) {
		data, err := json.Marshal(b)
		if err != nil {
			return
		}
		h.broadcast(data)
	}

	send(g.tick())
	for {
		select {
		case <-barT.C:
			send(g.roll())
		case <-tickT.C:
			send(g.tick())
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[barsim] starting demo bar server...")

	addr := envOrDefault("BARSIM_ADDR", ":9001")
	barIntervalMs := envIntOrDefault("BAR_INTERVAL_MS", 1000)
	tickIntervalMs := envIntOrDefault("TICK_INTERVAL_MS", 200)
	startPrice, err := strconv.ParseFloat(envOrDefault("START_PRICE", "100"), 64)
	if err != nil || startPrice <= 0 {
		log.Fatalf("[barsim] invalid START_PRICE")
	}

	log.Printf("[barsim] bar interval: %dms, tick interval: %dms, start price: %.2f",
		barIntervalMs, tickIntervalMs, startPrice)

	h := newHub()
	go runGenerator(h, newGenerator(startPrice), barIntervalMs, tickIntervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"barsim"}`)
	})

	log.Printf("[barsim] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[barsim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
