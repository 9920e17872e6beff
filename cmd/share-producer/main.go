package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/urfave/cli/v2"

	"github.com/puzzle-leaderboard/internal/domain"
)

func main() {
	app := &cli.App{
		Name:  "share-producer",
		Usage: "publish synthetic puzzle share messages to Kafka",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "brokers", Value: cli.NewStringSlice("localhost:9094"), EnvVars: []string{"KAFKA_BROKERS"}, Usage: "Kafka brokers"},
			&cli.StringFlag{Name: "topic", Value: "puzzle-shares", EnvVars: []string{"KAFKA_TOPIC"}, Usage: "Kafka topic"},
			&cli.IntFlag{Name: "players", Value: 50, Usage: "size of the player pool"},
			&cli.IntFlag{Name: "rate", Value: 20, Usage: "messages per second"},
			&cli.IntFlag{Name: "puzzle", Value: 100, Usage: "first puzzle number"},
			&cli.DurationFlag{Name: "day-length", Value: time.Minute, Usage: "how often the puzzle number advances"},
			&cli.DurationFlag{Name: "duration", Usage: "how long to run (0 = until interrupted)"},
			&cli.Float64Flag{Name: "noise", Value: 0.3, Usage: "fraction of messages without a score"},
			&cli.Uint64Flag{Name: "seed", Value: uint64(time.Now().UnixNano()), Usage: "random seed"},
		},
		Action: produce,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("share producer failed", "error", err)
		os.Exit(1)
	}
}

func produce(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if c.Int("players") < 1 || c.Int("rate") < 1 {
		return fmt.Errorf("players and rate must be positive")
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(c.StringSlice("brokers"), config)
	if err != nil {
		return fmt.Errorf("creating producer: %w", err)
	}

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			sent.Add(1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			failed.Add(1)
			logger.Warn("producer error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	gen := newGenerator(c.Uint64("seed"), c.Int("players"), domain.AllGames, c.Int("puzzle"), c.Float64("noise"))
	topic := c.String("topic")
	logger.Info("producing share messages",
		"brokers", c.StringSlice("brokers"),
		"topic", topic,
		"players", c.Int("players"),
		"rate", c.Int("rate"),
	)

	ticker := time.NewTicker(time.Second / time.Duration(c.Int("rate")))
	defer ticker.Stop()
	dayTicker := time.NewTicker(c.Duration("day-length"))
	defer dayTicker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var scored int64
loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-dayTicker.C:
			gen.NextPuzzle()

		case <-statsTicker.C:
			logger.Info("progress", "sent", sent.Load(), "scored", scored, "errors", failed.Load())

		case now := <-ticker.C:
			msg, hasScore := gen.Next(now)
			if hasScore {
				scored++
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encoding share message: %w", err)
			}
			select {
			case producer.Input() <- &sarama.ProducerMessage{
				Topic: topic,
				Key:   sarama.StringEncoder(msg.PlayerID),
				Value: sarama.ByteEncoder(data),
			}:
			case <-ctx.Done():
				break loop
			}
		}
	}

	producer.AsyncClose()
	wg.Wait()
	logger.Info("completed", "sent", sent.Load(), "scored", scored, "errors", failed.Load())
	return nil
}
