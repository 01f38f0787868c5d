package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const appPort = 8081

// The echo provider serves deterministic completions in-process, so the
// benchmark exercises the full gateway path without an upstream mock.
const benchConfig = `
server:
  port: "8081"
  env: production
  api_keys:
    - bench-key-12345
cache:
  ttl: 0s
rate_limit:
  default_rpm: 600000
providers:
  - id: echo-bench
    name: Echo Bench
    type: echo
    priority: 1
    enabled: true
    models:
      - name: echo-1
        display_name: Echo 1
        max_tokens: 4096
        capabilities: [streaming]
        enabled: true
`

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	flag.Parse()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(), fmt.Sprintf("CONFIG_FILE=%s", configFile))

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	mode := "Unary"
	body := `{"prompt": "Hello from the benchmark", "model": "echo-1", "provider": "echo-bench"}`
	if *stream {
		mode = "Streaming"
		body = `{"prompt": "Hello from the benchmark", "model": "echo-1", "provider": "echo-bench", "stream": true}`
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = fmt.Sprintf("http://localhost:%d/v1/completions", appPort)
		t.Body = []byte(body)
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer bench-key-12345"},
		}
		return nil
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		seen := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !seen[msg] && count < 5 {
				fmt.Println(msg)
				seen[msg] = true
				count++
			}
		}
	}
}

func waitForApp(url string) {
	fmt.Println("Waiting for app to be ready...")
	for i := 0; i < 50; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			fmt.Println("App is ready.")
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Fatal("App failed to start in time")
}
