// Command entropy-sts-engine qualifies a random number generator by running
// the statistical test suite over its output. Bitstreams come from a file,
// a deterministic generator, or live from devices publishing over MQTT; the
// suite iterates them across a worker pool, writes the per-test result
// files, and assesses the accumulated p-values. The process exits 0 when
// every test passes both assessment checks, 1 on a fatal error, and 2 when
// the generator fails qualification.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"entropy-sts-engine/internal/assess"
	"entropy-sts-engine/internal/bitstream"
	"entropy-sts-engine/internal/config"
	"entropy-sts-engine/internal/metrics"
	"entropy-sts-engine/internal/mqtt"
	"entropy-sts-engine/internal/sts"
	"entropy-sts-engine/internal/sts/universal"
)

const (
	exitFatal         = 1
	exitQualification = 2
)

// assessedTest is implemented by tests that expose per-partition verdicts
// after the metrics phase.
type assessedTest interface {
	sts.Test
	Verdicts() []assess.Verdict
}

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("main: could not load env file %s: %v", *envFile, err)
			os.Exit(exitFatal)
		}
		log.Printf("main: loaded environment from %s", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("main: configuration error: %v", err)
		os.Exit(exitFatal)
	}
	log.Printf("main: %s", cfg.String())

	os.Exit(run(cfg))
}

// run executes one qualification run and returns the process exit code. It
// is separate from main so that deferred cleanup runs before os.Exit.
func run(cfg config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Bind)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Printf("main: metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("main: metrics shutdown: %v", err)
			}
		}()
	}

	source, cleanup, err := buildSource(cfg)
	if err != nil {
		log.Printf("main: source setup failed: %v", err)
		return exitFatal
	}
	defer cleanup()

	tests := []sts.Test{universal.New()}

	runner := sts.NewRun(cfg)
	log.Printf("main: starting run %s with %d test(s)", runner.ID, len(tests))

	if err := runner.Conduct(ctx, source, tests); err != nil {
		log.Printf("main: run %s aborted: %v", runner.ID, err)
		return exitFatal
	}

	printSummary(tests)

	if runner.SuccessfulTests() != enabledCount(tests) {
		log.Printf("main: run %s: generator FAILED qualification", runner.ID)
		return exitQualification
	}
	log.Printf("main: run %s: generator passed qualification", runner.ID)
	return 0
}

// buildSource constructs the configured bitstream source. The returned
// cleanup releases whatever the source holds open and is safe to call
// after a failed run.
func buildSource(cfg config.Config) (bitstream.Source, func(), error) {
	n := cfg.Run.BitLength

	switch cfg.Source.Mode {
	case config.SourceFile:
		fileSource, err := bitstream.NewFileSource(cfg.Source.Path, cfg.Source.Format, n)
		if err != nil {
			return nil, func() {}, err
		}
		return fileSource, func() {
			if err := fileSource.Close(); err != nil {
				log.Printf("main: close input file: %v", err)
			}
		}, nil

	case config.SourceGenerator:
		return bitstream.NewGenerator(cfg.Source.Seed, n), func() {}, nil

	case config.SourceMQTT:
		// Buffer up to four complete bitstreams of raw bytes before the
		// assembler starts dropping payloads.
		maxBuffered := int(4 * bitstream.BytesForBits(n))
		assembler := bitstream.NewAssembler(n, maxBuffered)

		client, err := mqtt.NewClient(cfg.MQTT, &mqtt.IngestHandler{Sink: assembler})
		if err != nil {
			return nil, func() {}, err
		}
		if err := client.Connect(); err != nil {
			return nil, func() {}, err
		}
		return assembler, func() {
			client.Close()
			assembler.Close()
			if dropped := assembler.Dropped(); dropped > 0 {
				log.Printf("main: assembler dropped %d bytes during the run", dropped)
			}
		}, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
	}
}

// printSummary logs the per-partition verdict of every assessed test.
func printSummary(tests []sts.Test) {
	for _, t := range tests {
		if !t.Enabled() {
			log.Printf("summary: %s: disabled for this run", t.Name())
			continue
		}
		at, ok := t.(assessedTest)
		if !ok {
			continue
		}
		for i, v := range at.Verdicts() {
			log.Printf("summary: %s partition %d: %s (%d/%d passed, uniformity %.6f)",
				t.Name(), i+1, v.Outcome, v.PassCount, v.SampleCount, v.Uniformity)
		}
	}
}

// enabledCount returns how many tests participated in the run.
func enabledCount(tests []sts.Test) int {
	count := 0
	for _, t := range tests {
		if t.Enabled() {
			count++
		}
	}
	return count
}
