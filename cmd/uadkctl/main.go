// Command uadkctl drives the accelerator runtime against a file: compress
// or decompress it synchronously, or warm the pool up with a batch of
// concurrent asynchronous requests.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	uadk "github.com/hzhuang1/uadk"
	"github.com/hzhuang1/uadk/internal/descriptor"
	"github.com/hzhuang1/uadk/internal/logging"
	"github.com/hzhuang1/uadk/internal/sched"
)

func main() {
	var (
		in       = flag.String("in", "", "input file")
		out      = flag.String("out", "", "output file")
		alg      = flag.String("alg", "zlib", "algorithm: zlib or gzip")
		decomp   = flag.Bool("d", false, "decompress instead of compress")
		async    = flag.Bool("async", false, "dispatch via DoAsync instead of DoSync")
		contexts = flag.Int("contexts", 2, "number of contexts to bind for this op type")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: uadkctl -in FILE -out FILE [-alg zlib|gzip] [-d] [-async] [-contexts N]")
		os.Exit(2)
	}

	algorithm, err := parseAlgorithm(*alg)
	if err != nil {
		logger.Error("bad algorithm", "error", err)
		os.Exit(1)
	}

	src, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		os.Exit(1)
	}

	mode := sched.ModeSync
	if *async {
		mode = sched.ModeAsync
	}
	opType := uadk.OpCompress
	if *decomp {
		opType = uadk.OpDecompress
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, tearing down runtime")
		uadk.Uninit()
		os.Exit(130)
	}()

	scheduler := uadk.NewGreedyScheduler(4, 1)
	cfgs := make([]uadk.ContextConfig, 0, *contexts)
	for i := 0; i < *contexts; i++ {
		cfgs = append(cfgs, uadk.NewTestContext(opType, mode, 0))
	}
	uadk.BindContexts(scheduler, opType, mode, 0, 0, *contexts)
	if err := uadk.Init(cfgs, scheduler); err != nil {
		logger.Error("runtime init failed", "error", err)
		os.Exit(1)
	}
	defer uadk.Uninit()

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: algorithm, OpType: opType, Mode: mode})
	if err != nil {
		logger.Error("alloc_sess failed", "error", err)
		os.Exit(1)
	}
	defer uadk.FreeSess(h)

	dst := make([]byte, maxDestCap(len(src)))

	if *async {
		if err := warmUpAsync(logger, h, src, dst, *contexts); err != nil {
			logger.Error("async warm-up failed", "error", err)
			os.Exit(1)
		}
		return
	}

	req := &uadk.Request{Src: src, Dst: dst}
	if err := uadk.DoSync(h, req); err != nil {
		logger.Error("do_sync failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, dst[:req.Produced], 0o644); err != nil {
		logger.Error("failed to write output", "error", err)
		os.Exit(1)
	}
	logger.Info("done", "consumed", req.Consumed, "produced", req.Produced)
}

// warmUpAsync splits src across n concurrent DoAsync submissions — purely
// a pool warm-up exercise, not a real streaming split — and polls until
// every one has completed.
func warmUpAsync(logger *logging.Logger, h uadk.SessionHandle, src, dst []byte, n int) error {
	chunk := (len(src) + n - 1) / n
	if chunk == 0 {
		chunk = 1
	}

	var g errgroup.Group
	submitted := 0
	for off := 0; off < len(src); off += chunk {
		end := off + chunk
		if end > len(src) {
			end = len(src)
		}
		piece := src[off:end]
		pieceDst := make([]byte, maxDestCap(len(piece)))
		submitted++
		g.Go(func() error {
			req := &uadk.Request{Src: piece, Dst: pieceDst}
			return uadk.DoAsync(h, req, func(r uadk.Result) {
				logger.Debug("completion", "produced", r.Produced, "status", r.Status)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var count uint32
	target := uint32(submitted)
	for count < target {
		if err := uadk.Poll(target, &count); err != nil {
			return err
		}
	}
	logger.Info("warm-up complete", "requests", submitted)
	return nil
}

func parseAlgorithm(s string) (descriptor.Algorithm, error) {
	switch s {
	case "zlib":
		return descriptor.AlgZlib, nil
	case "gzip":
		return descriptor.AlgGzip, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q", s)
	}
}

// maxDestCap sizes a destination buffer generously enough for either
// compression (rarely larger than the source) or decompression (which can
// expand well past it).
func maxDestCap(srcLen int) int {
	capacity := srcLen * 4
	if capacity < 4096 {
		capacity = 4096
	}
	return capacity
}
