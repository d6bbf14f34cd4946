package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// gate_probe is run against a freshly deployed API before gate scanners
// and dorm kiosks are pointed at it. Each probe asserts the status code a
// device would see on that endpoint, so a broken route table or a missing
// auth middleware is caught before hardware starts queueing students.

type probe struct {
	Name       string          `json:"name"`
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	Body       json.RawMessage `json:"body,omitempty"`
	WantStatus int             `json:"want_status"`
	Critical   bool            `json:"critical"`
	MaxLatency string          `json:"max_latency,omitempty"`
}

type probeFile struct {
	Probes []probe `json:"probes"`
}

type result struct {
	Probe   probe
	Status  int
	Latency time.Duration
	TooSlow bool
	Err     error
}

func main() {
	var (
		baseURL    string
		probesPath string
		bearer     string
		timeout    time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&probesPath, "probes", filepath.Join("scripts", "gate_probe", "probes.json"), "Path to JSON probes file")
	flag.StringVar(&bearer, "token", os.Getenv("GATE_PROBE_TOKEN"), "Bearer token for authenticated probes")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes, err := loadProbes(probesPath)
	if err != nil {
		log.Fatalf("failed to load probes: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		warnings int
	)

	for _, p := range probes {
		res := runProbe(client, baseURL, bearer, p)
		if res.Err != nil || res.Status != p.WantStatus || res.TooSlow {
			if p.Critical {
				breaking++
			} else {
				warnings++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Failed critical probes: %d, warnings: %d\n", breaking, warnings)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf probeFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, err
	}
	if len(pf.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return pf.Probes, nil
}

func runProbe(client *http.Client, base, bearer string, p probe) result {
	res := result{Probe: p}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	var body *bytes.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		res.Err = err
		return res
	}
	if len(p.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	if p.MaxLatency != "" {
		if limit, perr := time.ParseDuration(p.MaxLatency); perr == nil && res.Latency > limit {
			res.TooSlow = true
		}
	}
	return res
}

func printReport(results []result) {
	fmt.Println("Gate Probe Report")
	fmt.Println("=================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Err != nil:
			status = "ERROR"
		case res.Status != res.Probe.WantStatus:
			status = "FAIL"
		case res.TooSlow:
			status = "SLOW"
		}
		name := res.Probe.Name
		if name == "" {
			name = res.Probe.Path
		}
		fmt.Printf("[%s] %s %s (%s)\n", status, res.Probe.Method, name, res.Latency)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Status: %d, want %d | Critical: %t\n", res.Status, res.Probe.WantStatus, res.Probe.Critical)
	}
}
