package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

// envelope mirrors the frontend's /api/data reply.
type envelope struct {
	Success     bool            `json:"success"`
	Error       string          `json:"error"`
	Details     string          `json:"details"`
	RequestID   string          `json:"request_id"`
	BackendData json.RawMessage `json:"backend_data"`
}

type backendData struct {
	Instance string `json:"instance"`
	Version  string `json:"version"`
}

func main() {
	baseURL := pflag.String("url", "http://localhost:3000", "frontend base URL")
	count := pflag.Int("count", 10, "number of /api/data calls")
	interval := pflag.Duration("interval", 500*time.Millisecond, "pause between calls")
	pflag.Parse()

	base := strings.TrimRight(*baseURL, "/")
	client := cleanhttp.DefaultClient()
	client.Timeout = 10 * time.Second

	fmt.Printf("\n=== Mesh probe: %s ===\n\n", base)

	if err := checkHealth(client, base); err != nil {
		fmt.Printf("health: FAILED (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("health: ok")

	ok := 0
	instances := map[string]int{}
	for i := 1; i <= *count; i++ {
		id := fmt.Sprintf("probe-%d", i)
		env, status, err := callData(client, base, id)
		switch {
		case err != nil:
			fmt.Printf("%-10s transport error: %v\n", id, err)
		case env.Success:
			ok++
			var bd backendData
			_ = json.Unmarshal(env.BackendData, &bd)
			instances[bd.Instance]++
			fmt.Printf("%-10s %d ok      instance=%s version=%s\n", id, status, bd.Instance, bd.Version)
		default:
			fmt.Printf("%-10s %d failed  %s: %s\n", id, status, env.Error, env.Details)
		}

		if i < *count {
			time.Sleep(*interval)
		}
	}

	fmt.Printf("\n%d/%d succeeded\n", ok, *count)
	for inst, n := range instances {
		fmt.Printf("   %s: %d\n", inst, n)
	}
}

func checkHealth(client *http.Client, base string) error {
	resp, err := client.Get(base + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func callData(client *http.Client, base, requestID string) (*envelope, int, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, base+"/api/data", nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "decoding reply")
	}
	return &env, resp.StatusCode, nil
}
