package main

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

// simulate drives a synthetic HTTP flood against a running medguard
// instance, spoofing a handful of distinct sources via X-Forwarded-For.
// Demo and testing only; point it at nothing you don't own.
func newSimulateCmd() *cobra.Command {
	var (
		target      string
		path        string
		duration    time.Duration
		concurrency int
		sources     int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate synthetic attack traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(target, path, duration, concurrency, sources)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "http://localhost:8090", "base URL of the monitored instance")
	cmd.Flags().StringVar(&path, "path", "/api/patients", "request path to flood")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "parallel request workers")
	cmd.Flags().IntVar(&sources, "sources", 3, "distinct spoofed source addresses")

	return cmd
}

func runSimulate(target, path string, duration time.Duration, concurrency, sources int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if sources < 1 {
		sources = 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	deadline := time.Now().Add(duration)

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; time.Now().Before(deadline); i++ {
				req, err := http.NewRequest(http.MethodGet, target+path, nil)
				if err != nil {
					failed.Add(1)
					continue
				}
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.66.0.%d", (worker+i)%sources+1))
				resp, err := client.Do(req)
				if err != nil {
					failed.Add(1)
					continue
				}
				resp.Body.Close()
				sent.Add(1)
			}
		}(w)
	}
	wg.Wait()

	fmt.Printf("simulation complete: %d requests sent, %d failed over %s\n",
		sent.Load(), failed.Load(), duration)
	return nil
}
