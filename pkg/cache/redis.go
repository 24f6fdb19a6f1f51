package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss viene restituito quando la chiave non esiste
var ErrCacheMiss = errors.New("cache miss")

// RedisClient wrapper per redis client: broker transport e cache a vita breve
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient crea un nuovo client Redis
func NewRedisClient(host, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         host,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  -1, // BRPOP gestisce il proprio timeout
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Get ottiene un valore dalla cache
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return val, err
}

// Set imposta un valore nella cache con scadenza
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Del elimina una o più chiavi
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// LPush inserisce un elemento in testa alla lista (producer del broker)
func (r *RedisClient) LPush(ctx context.Context, key string, value []byte) error {
	return r.client.LPush(ctx, key, value).Err()
}

// BRPop estrae un elemento dalla coda della lista, bloccando fino a timeout.
// Restituisce ErrCacheMiss se il timeout scade senza elementi.
func (r *RedisClient) BRPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	res, err := r.client.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	// BRPOP restituisce [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length: %d", len(res))
	}
	return []byte(res[1]), nil
}

// LLen restituisce la lunghezza della lista (profondità della coda)
func (r *RedisClient) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}

// Ping verifica la connessione
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close chiude la connessione
func (r *RedisClient) Close() error {
	return r.client.Close()
}
