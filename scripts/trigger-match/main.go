package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wolfman30/telehealth-coordination/internal/http/middleware"
)

func main() {
	specialty := ""
	if len(os.Args) > 1 {
		specialty = os.Args[1]
	}

	secret := os.Getenv("INTERNAL_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: INTERNAL_JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	token, err := middleware.SignInternalToken(secret, "trigger-match-script", 5*time.Minute)
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	payload, _ := json.Marshal(map[string]string{"specialty": specialty, "reason": "manual"})
	url := apiURL + "/internal/waitlist/match"
	fmt.Printf("Triggering waitlist match (specialty=%q)\n", specialty)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: HTTP %d\n%s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Response: %s\n", string(body))
		return
	}
	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("Done\n%s\n", string(pretty))
}
