// File: cmd/poolctl/soak.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-pool/adapters"
	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/control"
)

type soakOptions struct {
	Items       int
	Producers   int
	FailEvery   int
	MetricsAddr string
	Watch       bool
}

type soakResult struct {
	Queued       int64
	Completed    int64
	Failed       int64
	Exceptions   int64
	TotalBuffers int64
	Expansions   int64
	Elapsed      time.Duration
	ShutdownErr  error
	State        map[string]any
}

func RunSoakCommand() *cobra.Command {
	var opts soakOptions

	var command = &cobra.Command{
		Use:   "soak",
		Short: "Run a synthetic message-formatting workload through both pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if opts.MetricsAddr == "" && loader.Config().Metrics.Enabled {
				opts.MetricsAddr = loader.Config().Metrics.Addr
			}

			res, err := runSoak(cmd.Context(), loader, opts)
			if err != nil {
				return err
			}
			printSoakResult(cmd.OutOrStdout(), res)
			if res.ShutdownErr != nil && !errors.Is(res.ShutdownErr, api.ErrShutdownTimeout) {
				return res.ShutdownErr
			}
			return nil
		},
	}

	command.Flags().IntVar(&opts.Items, "items", 10000, "number of work items to queue")
	command.Flags().IntVar(&opts.Producers, "producers", 4, "number of concurrent producers")
	command.Flags().IntVar(&opts.FailEvery, "fail-every", 0, "make every Nth item panic (0 disables)")
	command.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	command.Flags().BoolVar(&opts.Watch, "watch", false, "apply config file changes to the worker pool while running")

	return command
}

// runSoak queues opts.Items work items from opts.Producers goroutines. Each
// item borrows a buffer, formats a log record into it, checksums it and
// frees it again.
func runSoak(ctx context.Context, loader *control.Loader, opts soakOptions) (soakResult, error) {
	if opts.Items < 0 || opts.Producers < 1 {
		return soakResult{}, errors.Wrapf(api.ErrInvalidArgument, "items=%d producers=%d", opts.Items, opts.Producers)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := loader.Config()
	bp, err := cfg.NewBufferPool(log.Logger)
	if err != nil {
		return soakResult{}, err
	}
	tp := cfg.NewThreadPool(log.Logger)
	control.BindThreadPool(loader, tp)
	if opts.Watch {
		if err := loader.Watch(); err != nil {
			_ = tp.Shutdown(0)
			return soakResult{}, err
		}
		defer loader.Close()
	}

	probes := control.NewDebugProbes()
	probes.RegisterBufferPoolProbe(bp)
	probes.RegisterThreadPoolProbes(tp)
	ctrl := adapters.NewControlAdapter(loader, probes)

	metrics := control.NewMetricsManager()
	metrics.Collector().AddBufferPool(bp)
	metrics.Collector().AddThreadPool(tp)
	stopMetrics, err := serveMetrics(opts.MetricsAddr, metrics.Handler())
	if err != nil {
		_ = tp.Shutdown(0)
		return soakResult{}, err
	}
	defer stopMetrics()

	var (
		res        soakResult
		resMu      sync.Mutex
		pending    sync.WaitGroup
		checksumMu sync.Mutex
		checksum   uint32
	)
	bp.OnExpanded(func(ev api.PoolExpandedEvent) {
		log.Debug().Int64("total", ev.TotalBuffers).Int("size", ev.BufferSize).Msg("soak: buffer pool grew")
	})
	tp.OnTaskException(func(ev api.TaskExceptionEvent) {
		resMu.Lock()
		res.Exceptions++
		resMu.Unlock()
		log.Debug().Err(ev.Err).Interface("item", ev.State).Str("worker", ev.Worker).Msg("soak: item failed")
	})

	formatRecord := func(state any) error {
		defer pending.Done()
		seq := state.(int)

		buf := bp.AllocateBuffer()
		defer bp.FreeBuffer(buf)

		if opts.FailEvery > 0 && seq%opts.FailEvery == 0 {
			panic(fmt.Sprintf("synthetic failure for item %d", seq))
		}
		n := copy(buf, fmt.Sprintf("%s seq=%d level=info msg=%q", time.Now().UTC().Format(time.RFC3339Nano), seq, "soak record"))
		if n+4 <= len(buf) {
			binary.LittleEndian.PutUint32(buf[n:], uint32(seq))
			n += 4
		}
		sum := crc32.ChecksumIEEE(buf[:n])

		checksumMu.Lock()
		checksum ^= sum
		checksumMu.Unlock()
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	per := opts.Items / opts.Producers
	for p := 0; p < opts.Producers; p++ {
		first := p * per
		last := first + per
		if p == opts.Producers-1 {
			last = opts.Items
		}
		g.Go(func() error {
			for seq := first; seq < last; seq++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				pending.Add(1)
				if err := tp.QueueWorkItem(formatRecord, seq); err != nil {
					pending.Done()
					return errors.Wrapf(err, "queue item %d", seq)
				}
				resMu.Lock()
				res.Queued++
				resMu.Unlock()
			}
			return nil
		})
	}
	produceErr := g.Wait()

	if produceErr == nil {
		waitOrDone(ctx, &pending)
	}
	res.Elapsed = time.Since(start)
	res.ShutdownErr = tp.Close()

	stats := tp.Stats()
	bstats := bp.Stats()
	res.Completed = stats.Completed
	res.Failed = stats.Failed
	res.TotalBuffers = bstats.TotalBuffers
	res.Expansions = bstats.Expansions
	res.State = ctrl.Stats()

	log.Info().
		Int64("completed", res.Completed).
		Int64("failed", res.Failed).
		Int64("buffers", res.TotalBuffers).
		Uint32("checksum", checksum).
		Dur("elapsed", res.Elapsed).
		Msg("soak finished")

	if produceErr != nil {
		return res, produceErr
	}
	return res, nil
}

func waitOrDone(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func serveMetrics(addr string, h http.Handler) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen metrics on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printSoakResult(w io.Writer, res soakResult) {
	fmt.Fprintf(w, "queued:        %d\n", res.Queued)
	fmt.Fprintf(w, "completed:     %d\n", res.Completed)
	fmt.Fprintf(w, "failed:        %d\n", res.Failed)
	fmt.Fprintf(w, "buffers:       %d (%d expansions)\n", res.TotalBuffers, res.Expansions)
	fmt.Fprintf(w, "elapsed:       %s\n", res.Elapsed)
	if res.ShutdownErr != nil {
		fmt.Fprintf(w, "shutdown:      %v\n", res.ShutdownErr)
	}

	keys := make([]string, 0, len(res.State))
	for k := range res.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-40s %v\n", k, res.State[k])
	}
}
