// Package main - swarm
// Load generator for stress testing. Simulates many residents joining
// lobbies, holding WebSocket subscriptions and pulling state refreshes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the swarm run.
type Config struct {
	BaseURL      string
	WSURL        string
	NumResidents int
	PullInterval time.Duration
	TestDuration time.Duration
	LobbySize    int
}

// Stats tracks performance metrics.
type Stats struct {
	RequestsSent  int64
	HintsReceived int64
	Errors        int64
	Latencies     []time.Duration
	mu            sync.Mutex
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "WebSocket URL")
	numResidents := flag.Int("residents", 40, "Number of concurrent residents")
	interval := flag.Duration("interval", 500*time.Millisecond, "State pull interval per resident")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	lobbySize := flag.Int("lobby", 8, "Players per lobby")
	flag.Parse()

	cfg := Config{
		BaseURL:      *baseURL,
		WSURL:        *wsURL,
		NumResidents: *numResidents,
		PullInterval: *interval,
		TestDuration: *duration,
		LobbySize:    *lobbySize,
	}

	fmt.Println("=========================================")
	fmt.Println("SWARM - Load Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server:    %s\n", cfg.BaseURL)
	fmt.Printf("Residents: %d\n", cfg.NumResidents)
	fmt.Printf("Interval:  %v\n", cfg.PullInterval)
	fmt.Printf("Duration:  %v\n", cfg.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runSwarm(ctx, cfg)
	printResults(stats, cfg)
}

func runSwarm(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{Latencies: make([]time.Duration, 0, 10000)}

	var wg sync.WaitGroup

	fmt.Println("\nStarting residents...")

	numLobbies := (cfg.NumResidents + cfg.LobbySize - 1) / cfg.LobbySize
	for l := 0; l < numLobbies; l++ {
		creator := fmt.Sprintf("swarm-resident-%03d", l*cfg.LobbySize)
		gameID, err := createLobby(cfg, creator, cfg.LobbySize)
		if err != nil {
			log.Printf("lobby %d: create failed: %v", l, err)
			atomic.AddInt64(&stats.Errors, 1)
			continue
		}

		for i := 0; i < cfg.LobbySize; i++ {
			seat := l*cfg.LobbySize + i
			if seat >= cfg.NumResidents {
				break
			}
			wg.Add(1)
			go func(seat int, gameID string, isCreator bool) {
				defer wg.Done()
				runResident(ctx, seat, gameID, isCreator, cfg, stats)
			}(seat, gameID, i == 0)

			// Stagger starts to avoid thundering herd.
			time.Sleep(10 * time.Millisecond)
		}
	}

	fmt.Printf("All %d residents started across %d lobbies\n\n", cfg.NumResidents, numLobbies)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent := atomic.LoadInt64(&stats.RequestsSent)
				hints := atomic.LoadInt64(&stats.HintsReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("Progress: Requests=%d Hints=%d Errors=%d\n", sent, hints, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

func apiRequest(cfg Config, method, path, residentID string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Resident-ID", residentID)
	req.Header.Set("X-Resident-Name", residentID)
	req.Header.Set("X-Scope", "swarm")
	return http.DefaultClient.Do(req)
}

func createLobby(cfg Config, creator string, size int) (string, error) {
	resp, err := apiRequest(cfg, http.MethodPost, "/api/games", creator,
		map[string]interface{}{"max_players": size, "speed": "short"})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var game struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return "", err
	}
	return game.ID, nil
}

func runResident(ctx context.Context, seat int, gameID string, isCreator bool, cfg Config, stats *Stats) {
	residentID := fmt.Sprintf("swarm-resident-%03d", seat)

	if !isCreator {
		resp, err := apiRequest(cfg, http.MethodPost, "/api/games/"+gameID+"/join", residentID, struct{}{})
		if err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			return
		}
		resp.Body.Close()
	}

	// Open the push channel and subscribe to the game.
	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("resident_id", residentID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Printf("resident %d: ws dial failed: %v", seat, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	sub := map[string]string{"type": "subscribe", "game_id": gameID}
	if err := conn.WriteJSON(sub); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.HintsReceived, 1)
		}
	}()

	// Creator starts the game once everyone has had time to join.
	if isCreator {
		time.Sleep(2 * time.Second)
		resp, err := apiRequest(cfg, http.MethodPost, "/api/games/"+gameID+"/start", residentID, struct{}{})
		if err != nil {
			atomic.AddInt64(&stats.Errors, 1)
		} else {
			resp.Body.Close()
		}
	}

	// Pull loop: refetch game state the way a real client reacts to hints.
	pullPaths := []string{
		"/api/games/" + gameID + "/players",
		"/api/games/" + gameID + "/events",
		"/api/games/" + gameID + "/votes",
	}
	ticker := time.NewTicker(cfg.PullInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			resp, err := apiRequest(cfg, http.MethodGet, pullPaths[i%len(pullPaths)], residentID, nil)
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			resp.Body.Close()
			atomic.AddInt64(&stats.RequestsSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, time.Since(start))
			stats.mu.Unlock()
		}
	}
}

func printResults(stats *Stats, cfg Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.RequestsSent)
	hints := atomic.LoadInt64(&stats.HintsReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Requests Sent:  %d\n", sent)
	fmt.Printf("Hints Received: %d\n", hints)
	fmt.Printf("Errors:         %d\n", errs)
	fmt.Printf("Error Rate:     %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / cfg.TestDuration.Seconds()
	fmt.Printf("Throughput:     %.2f req/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		min, max := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		avg := total / time.Duration(len(stats.Latencies))

		fmt.Printf("\nLatency:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", max)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0:
		fmt.Println("TEST PASSED: System handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: Some errors detected")
	default:
		fmt.Println("TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"requests_sent":      sent,
		"hints_received":     hints,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"residents": cfg.NumResidents,
			"interval":  cfg.PullInterval.String(),
			"duration":  cfg.TestDuration.String(),
		},
	}
	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("swarm_results.json", jsonData, 0644)
	fmt.Println("\nResults saved to swarm_results.json")
}
