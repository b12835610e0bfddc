// cmd/historian/main.go is an asynchronous historian service that pops game
// action records from a Redis queue and persists them to PostgreSQL. It also
// marks games abandoned after a period of inactivity.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/kernel-games/popcorn/internal/cache"
	"github.com/kernel-games/popcorn/internal/database"
)

// HistorianService encapsulates the Redis + DB logic for capturing game
// actions and marking games abandoned when the inactivity threshold is
// reached.
type HistorianService struct {
	redisClient  *redis.Client
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[uuid.UUID]time.Time per game

	batchMu  sync.Mutex
	batch    []cache.GameActionRecord
	flushFn  func()
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment variables
// or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600) // default 10 min

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	hs := &HistorianService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]cache.GameActionRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
	hs.flushFn = hs.flushBatchToDB
	return hs
}

// Run starts the three main loops:
//  1. A loop that reads from the Redis queue and accumulates records.
//  2. A ticker flushing the batch to the DB on its own cadence.
//  3. A periodic inactivity check that marks stale games as abandoned.
func (hs *HistorianService) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()
	go hs.flushLoop()
	go hs.inactivityLoop()

	log.Println("popcorn-historian service started.")
	<-hs.ctx.Done()
	log.Println("popcorn-historian shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve records from the queue.
func (hs *HistorianService) readRedisLoop() {
	queueName := getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return
		default:
		}

		// BLPop with a 3-second timeout so context cancellation is handled.
		res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if hs.ctx.Err() != nil {
				return
			}
			log.Printf("[ERROR] BLPop: %v\n", err)
			continue
		}
		if len(res) < 2 {
			// No record popped.
			continue
		}

		// res[0] is the queue name and res[1] the payload.
		var record cache.GameActionRecord
		if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
			log.Printf("invalid action record: %v\n", err)
			continue
		}

		hs.lastActivity.Store(record.GameID, time.Now())
		hs.appendToBatch(record)
	}
}

// flushLoop flushes the batch on its own ticker, so the flush cadence does
// not depend on queue traffic. An idle BLPop must never delay a flush.
func (hs *HistorianService) flushLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return
		case <-ticker.C:
			hs.flushFn()
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the
// threshold is reached.
func (hs *HistorianService) appendToBatch(record cache.GameActionRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

// flushBatchLocked writes the batch in a single transaction. Callers hold
// batchMu.
func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]cache.GameActionRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flushBatchToDB: %v\n", err)
	} else {
		log.Printf("Flushed %d actions to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically checks whether any game has been inactive beyond
// the configured threshold and marks such games as abandoned.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				gameID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markGameAbandoned(gameID)
					hs.lastActivity.Delete(gameID)
				}
				return true
			})
		}
	}
}

// markGameAbandoned marks a game as 'abandoned' in the database if it was
// still marked as 'active'.
func (hs *HistorianService) markGameAbandoned(gameID uuid.UUID) {
	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE games
			SET status = 'abandoned', finished_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'active'
		`
		_, e := tx.Exec(ctx, q, gameID)
		return e
	})
	if err != nil {
		log.Printf("failed to mark game %v abandoned: %v", gameID, err)
	} else {
		log.Printf("Marked game %v as 'abandoned' due to inactivity.", gameID)
	}
}

// insertGameActionTx inserts a single action record into the game_actions
// table, ensuring the games row exists first. The game server owns the game
// row's status, so the guard insert never overwrites it.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	guardQ := `
		INSERT INTO games (id, status)
		VALUES ($1, 'lobby')
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, guardQ, rec.GameID); err != nil {
		return err
	}

	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1000.0))
	`
	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload, rec.Timestamp,
	)
	return err
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
	hs.flushBatchToDB()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer from an environment variable or returns a
// default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
