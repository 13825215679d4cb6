// Binary replay feeds a CSV of recorded prices through the crossover engine
// against the paper venue and reports the orders it would have placed.
//
// CSV rows are "symbol,price" or "symbol,price,rfc3339-timestamp". Rows
// without a timestamp are spaced one minute apart from the previous row of
// the same symbol.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/engine"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/execution"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/ledger"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/notify"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/util"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/venue"
)

// csvSource replays a fixed slice of samples, then holds the feed open until
// the caller cancels so in-flight samples finish draining.
type csvSource struct {
	samples []signal.PriceSample
	done    chan struct{}
}

func (s *csvSource) Run(ctx context.Context, out chan<- signal.PriceSample) error {
	for _, sample := range s.samples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- sample:
		}
	}
	close(s.done)
	<-ctx.Done()
	return ctx.Err()
}

func loadSamples(path string) ([]signal.PriceSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var samples []signal.PriceSample
	lastTs := make(map[string]time.Time)
	base := time.Now().Add(-24 * time.Hour)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: want symbol,price[,ts], got %d fields", line, len(record))
		}
		symbol := strings.ToUpper(strings.TrimSpace(record[0]))
		price, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad price: %w", line, err)
		}
		var ts time.Time
		if len(record) >= 3 && strings.TrimSpace(record[2]) != "" {
			ts, err = time.Parse(time.RFC3339, strings.TrimSpace(record[2]))
			if err != nil {
				return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
			}
		} else if last, ok := lastTs[symbol]; ok {
			ts = last.Add(time.Minute)
		} else {
			ts = base
		}
		lastTs[symbol] = ts
		samples = append(samples, signal.PriceSample{Symbol: symbol, Price: price, Ts: ts})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: no samples", path)
	}
	return samples, nil
}

func symbolsOf(samples []signal.PriceSample) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, s := range samples {
		if _, ok := seen[s.Symbol]; !ok {
			seen[s.Symbol] = struct{}{}
			symbols = append(symbols, s.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

func main() {
	csvPath := flag.String("csv", "", "CSV file of symbol,price[,ts] rows")
	short := flag.Int("short", 9, "short moving-average window")
	long := flag.Int("long", 26, "long moving-average window")
	qty := flag.Float64("qty", 0.001, "order quantity")
	logLevel := flag.String("log-level", "warn", "log level during the replay")
	flag.Parse()

	log := util.NewLogger(*logLevel, true)
	if *csvPath == "" {
		log.Fatal().Msg("-csv is required")
	}

	samples, err := loadSamples(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load samples")
	}

	led, err := ledger.Open("")
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger")
	}

	paper := venue.NewPaper(log)
	coord, err := execution.NewCoordinator(paper, led, notify.NewLogger(log), *qty, log,
		execution.WithRateLimit(1000, 100))
	if err != nil {
		log.Fatal().Err(err).Msg("build coordinator")
	}

	src := &csvSource{samples: samples, done: make(chan struct{})}
	eng, err := engine.New(engine.Config{
		Symbols:     symbolsOf(samples),
		ShortWindow: *short,
		LongWindow:  *long,
	}, src, coord, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- eng.Run(ctx) }()

	<-src.done
	// Grace period so the last buffered samples reach their workers.
	time.Sleep(200 * time.Millisecond)
	cancel()
	if err := <-finished; err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("replay failed")
	}

	orders := paper.Orders()
	fmt.Printf("replayed %d samples across %d symbols, %d order(s)\n",
		len(samples), len(symbolsOf(samples)), len(orders))
	for _, o := range orders {
		fmt.Printf("  %s %s qty=%v id=%s\n", o.Side, o.Symbol, o.Qty, o.ClientOrderID)
	}
	for symbol, entry := range led.Snapshot() {
		fmt.Printf("  last %s: %s at %s (order %s)\n",
			symbol, entry.Direction, entry.ExecutedAt.Format(time.RFC3339), entry.OrderID)
	}
}
