package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type batchResponse struct {
	Claimed   int      `json:"claimed"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	Error     string   `json:"error"`
}

type batchMetric struct {
	Batch      int
	HTTPStatus int
	Duration   time.Duration
	Claimed    int
	Completed  int
	Failed     int
	Error      string
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8082", "API base URL")
	adminSecretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	batchSize := flag.Int("batch-size", 10, "Churches per request")
	maxBatches := flag.Int("max-batches", 10, "Stop after this many batches")
	rateLimitMs := flag.Int("rate-limit-ms", 2000, "Delay between batches in milliseconds")
	timeoutSec := flag.Int("timeout-sec", 300, "HTTP timeout in seconds")
	flag.Parse()

	adminSecret := strings.TrimSpace(*adminSecretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		exitErr(errors.New("missing admin secret: use -admin-secret or ADMIN_SECRET env"))
	}
	if *batchSize <= 0 || *maxBatches <= 0 {
		exitErr(errors.New("batch-size and max-batches must be > 0"))
	}

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}
	endpoint := strings.TrimRight(*baseURL, "/") + "/api/v1/admin/enrich"
	metrics := make([]batchMetric, 0, *maxBatches)

	for i := 1; i <= *maxBatches; i++ {
		metric := batchMetric{Batch: i}
		start := time.Now()

		resp, status, err := callEnrich(client, endpoint, adminSecret, *batchSize)
		metric.Duration = time.Since(start)
		metric.HTTPStatus = status
		if err != nil {
			metric.Error = err.Error()
			metrics = append(metrics, metric)
			break
		}

		metric.Claimed = resp.Claimed
		metric.Completed = resp.Completed
		metric.Failed = resp.Failed
		metrics = append(metrics, metric)

		// Empty claim means the queue is drained.
		if resp.Claimed == 0 {
			break
		}
		if i < *maxBatches && *rateLimitMs > 0 {
			time.Sleep(time.Duration(*rateLimitMs) * time.Millisecond)
		}
	}

	printReport(metrics)
}

func callEnrich(client *http.Client, endpoint, adminSecret string, batchSize int) (*batchResponse, int, error) {
	body := strings.NewReader(fmt.Sprintf(`{"batch_size": %d}`, batchSize))
	req, err := http.NewRequest(http.MethodPost, endpoint, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", adminSecret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var payload batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if payload.Error == "" {
			return &payload, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
		}
		return &payload, resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, payload.Error)
	}

	return &payload, resp.StatusCode, nil
}

func printReport(metrics []batchMetric) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Batch", "HTTP", "Claimed", "Completed", "Failed", "Duration", "Error"})

	totalClaimed, totalCompleted, totalFailed := 0, 0, 0
	for _, m := range metrics {
		totalClaimed += m.Claimed
		totalCompleted += m.Completed
		totalFailed += m.Failed
		t.AppendRow(table.Row{m.Batch, m.HTTPStatus, m.Claimed, m.Completed, m.Failed, m.Duration.Round(time.Millisecond), m.Error})
	}
	t.AppendFooter(table.Row{"Total", "", totalClaimed, totalCompleted, totalFailed, "", ""})
	t.Render()
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
