package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

type fakePublisher struct {
	mu       sync.Mutex
	sendFn   func(msg *sarama.ProducerMessage) (int32, int64, error)
	messages []*sarama.ProducerMessage
}

func (f *fakePublisher) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()

	if f.sendFn == nil {
		return 0, int64(len(f.messages)), nil
	}
	return f.sendFn(msg)
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-brokers=127.0.0.1:9092,127.0.0.1:9093",
			"-topic=custom.commands",
			"-total=12",
			"-concurrency=3",
			"-producers=2",
			"-timeout=2s",
			"-qty=4",
			"-price-minor=99",
			"-product-tag=stage-product",
			"-customer-tag=stage",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.duration != 0 {
				t.Fatalf("expected zero duration, got %s", cfg.duration)
			}
			if cfg.topic != "custom.commands" {
				t.Fatalf("unexpected topic: %s", cfg.topic)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.producers != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.qty != 4 || cfg.priceMinor != 99 {
				t.Fatalf("unexpected line config: %+v", cfg)
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
		})
	})

	t.Run("defaults target the command topic", func(t *testing.T) {
		withCLIArgs(t, nil, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.topic != kafka.TopicOrderCommands {
				t.Fatalf("unexpected default topic: %s", cfg.topic)
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-duration=3s",
			"-concurrency=2",
			"-producers=1",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
			{name: "zero qty", args: []string{"-qty=0"}, wantErr: "qty must be > 0"},
			{name: "zero price", args: []string{"-price-minor=0"}, wantErr: "price-minor must be > 0"},
			{name: "empty brokers", args: []string{"-brokers= "}, wantErr: "brokers is required"},
			{name: "empty topic", args: []string{"-topic= "}, wantErr: "topic is required"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, resultOK)
	c.record("scenario", 20*time.Millisecond, resultError)
	c.record("PublishCommand", 15*time.Millisecond, resultOK)

	snap, ok := c.snapshot("scenario")
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 2 || snap.Success != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Results[resultOK] != 1 || snap.Results[resultError] != 1 {
		t.Fatalf("unexpected results: %+v", snap.Results)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["PublishCommand"]; !ok {
		t.Fatalf("expected PublishCommand stats in report")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := publishResult(nil); got != resultOK {
		t.Fatalf("publishResult(nil) = %s, want %s", got, resultOK)
	}
	if got := publishResult(errors.New("broker down")); got != resultError {
		t.Fatalf("unexpected publish result: %s", got)
	}

	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestRunScenario(t *testing.T) {
	c := newCollector()
	cfg := config{
		topic:       "loadtest.commands",
		timeout:     time.Second,
		qty:         3,
		priceMinor:  250,
		productTag:  "load-product",
		customerTag: "load",
	}

	pub := &fakePublisher{}
	if err := runScenario(pub, cfg, 7, "run-1", c); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Topic != "loadtest.commands" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}

	payload, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	command, err := kafka.ParseOrderCommand(&sarama.ConsumerMessage{Value: payload})
	if err != nil {
		t.Fatalf("parse published command: %v", err)
	}
	if command.CommandType != kafka.CommandTypeOrderPlace {
		t.Fatalf("unexpected command type: %s", command.CommandType)
	}
	if !strings.HasPrefix(command.IdempotencyKey, "lt-place-run-1-7") {
		t.Fatalf("unexpected idempotency key: %s", command.IdempotencyKey)
	}
	if !strings.HasPrefix(command.CustomerID, "load-run-1-7") {
		t.Fatalf("unexpected customer id: %s", command.CustomerID)
	}
	if len(command.Lines) != 1 || command.Lines[0].Qty != 3 || command.Lines[0].PriceMinor != 250 {
		t.Fatalf("unexpected command lines: %+v", command.Lines)
	}

	foundHeader := false
	for _, header := range msg.Headers {
		if string(header.Key) == kafka.HeaderIdempotencyKey {
			foundHeader = true
			if string(header.Value) != command.IdempotencyKey {
				t.Fatalf("header key mismatch: %s", header.Value)
			}
		}
	}
	if !foundHeader {
		t.Fatalf("expected idempotency header on published message")
	}

	snap, ok := c.snapshot("PublishCommand")
	if !ok || snap.Calls != 1 || snap.Success != 1 {
		t.Fatalf("unexpected PublishCommand snapshot: %+v", snap)
	}
	scenarioSnap, ok := c.snapshot("scenario")
	if !ok || scenarioSnap.Success != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", scenarioSnap)
	}
}

func TestRunScenarioPublishFailure(t *testing.T) {
	c := newCollector()
	cfg := config{
		topic:       "loadtest.commands",
		timeout:     time.Second,
		qty:         1,
		priceMinor:  100,
		productTag:  "load-product",
		customerTag: "load",
	}

	pub := &fakePublisher{
		sendFn: func(*sarama.ProducerMessage) (int32, int64, error) {
			return 0, 0, errors.New("broker unavailable")
		},
	}

	err := runScenario(pub, cfg, 1, "run-2", c)
	if err == nil || !strings.Contains(err.Error(), "send command") {
		t.Fatalf("expected send error, got %v", err)
	}

	snap, ok := c.snapshot("scenario")
	if !ok || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	publishSnap, ok := c.snapshot("PublishCommand")
	if !ok || publishSnap.Results[resultError] != 1 {
		t.Fatalf("unexpected publish snapshot: %+v", publishSnap)
	}
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			"scenario":       {Calls: 2, Success: 2},
			"PublishCommand": {Calls: 2, Success: 2},
		},
	}

	out := captureStdout(t, func() {
		printReport(r, config{topic: "loadtest.commands", total: 2})
	})

	if !strings.Contains(out, "Load test summary") {
		t.Fatalf("expected summary header, got: %s", out)
	}
	if !strings.Contains(out, "PublishCommand") {
		t.Fatalf("expected method section, got: %s", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}
