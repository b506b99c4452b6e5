package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// window mirrors the POST /api/availability/windows body.
type window struct {
	ProviderID       string `json:"provider_id"`
	Kind             string `json:"kind"`
	DayOfWeek        *int   `json:"day_of_week,omitempty"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	TimeZone         string `json:"time_zone"`
	LocationOverride string `json:"location_override,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-availability <windows.json>")
		fmt.Println("Example: go run ./scripts/seed-availability scripts/seed-availability/sample.json")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	var windows []window
	if err := json.Unmarshal(data, &windows); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	failed := 0
	for i, w := range windows {
		body, _ := json.Marshal(w)
		resp, err := client.Post(apiURL+"/api/availability/windows", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("[%d] %s: request failed: %v\n", i+1, w.ProviderID, err)
			failed++
			continue
		}
		out, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			fmt.Printf("[%d] %s: HTTP %d %s\n", i+1, w.ProviderID, resp.StatusCode, string(out))
			failed++
			continue
		}
		fmt.Printf("[%d] %s: %s %s-%s ok\n", i+1, w.ProviderID, w.Kind, w.StartTime, w.EndTime)
	}

	fmt.Printf("\nSeeded %d/%d windows\n", len(windows)-failed, len(windows))
	if failed > 0 {
		os.Exit(1)
	}
}
