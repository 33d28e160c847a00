package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/hitster-live/internal/domain"
)

var songs = []struct {
	Song   string
	Artist string
	Year   int
}{
	{"Bohemian Rhapsody", "Queen", 1975},
	{"Billie Jean", "Michael Jackson", 1982},
	{"Smells Like Teen Spirit", "Nirvana", 1991},
	{"Hey Jude", "The Beatles", 1968},
	{"Dancing Queen", "ABBA", 1976},
	{"Rolling in the Deep", "Adele", 2010},
	{"Take On Me", "a-ha", 1984},
	{"Wonderwall", "Oasis", 1995},
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "hitster-guesses", "Kafka topic")
	roundID := flag.Int64("round", 0, "Open round ID to guess on")
	firstPlayer := flag.Int64("first-player", 1, "First player ID")
	totalPlayers := flag.Int("players", 20, "Number of consecutive player IDs to guess for")
	rate := flag.Int("rate", 10, "Guesses per second")
	spread := flag.Int("spread", 5, "Maximum distance of a guessed year from the real one")
	duration := flag.Duration("duration", 0, "Duration to run (0 = one guess per player, then exit)")
	flag.Parse()

	if *roundID <= 0 {
		log.Fatal("-round is required")
	}
	if *totalPlayers <= 0 || *rate <= 0 {
		log.Fatal("-players and -rate must be positive")
	}

	brokerList := strings.Split(*brokers, ",")
	answer := songs[rand.Intn(len(songs))]

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Hitster Guess Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Round:            %d\n", *roundID)
	fmt.Printf("  Players:          %d..%d\n", *firstPlayer, *firstPlayer+int64(*totalPlayers)-1)
	fmt.Printf("  Guesses/sec:      %d\n", *rate)
	fmt.Printf("  Playing:          %s - %s (%d)\n", answer.Song, answer.Artist, answer.Year)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	send := func(sub domain.GuessSubmission) {
		data, err := json.Marshal(sub)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(strconv.FormatInt(sub.PlayerID, 10)),
			Value: sarama.ByteEncoder(data),
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	next := 0
	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration == 0 && next >= *totalPlayers {
				shutdown("Every player has guessed, shutting down...")
				return
			}
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			playerID := *firstPlayer + int64(next%*totalPlayers)
			next++
			send(randomGuess(*roundID, playerID, answer.Song, answer.Artist, answer.Year, *spread))
		}
	}
}

// randomGuess builds a guess that is right about half the time on titles and
// lands within spread years of the real year.
func randomGuess(roundID, playerID int64, song, artist string, year, spread int) domain.GuessSubmission {
	sub := domain.GuessSubmission{RoundID: roundID, PlayerID: playerID}
	if rand.Intn(2) == 0 {
		sub.Song = strings.ToLower(song)
	} else {
		sub.Song = songs[rand.Intn(len(songs))].Song
	}
	if rand.Intn(2) == 0 {
		sub.Artist = artist
	}
	sub.Year = strconv.Itoa(year + rand.Intn(2*spread+1) - spread)
	return sub
}
