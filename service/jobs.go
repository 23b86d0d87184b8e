package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the job ledger and processed-result cache. Batch job status is
// written after every image so progress is observable while the job runs,
// and retained for the configured TTL after completion.
type Store interface {
	SetJob(ctx context.Context, job *model.JobStatus) error
	// GetJob returns nil without error when the job is unknown or expired.
	GetJob(ctx context.Context, id string) (*model.JobStatus, error)

	SetResult(ctx context.Context, key string, result *model.ProcessResponse) error
	// GetResult returns nil without error on a cache miss.
	GetResult(ctx context.Context, key string) (*model.ProcessResponse, error)
}

// NewStore connects to Redis, degrading to an in-memory store (bounded by
// the same TTL) when Redis is unreachable so startup never fails.
func NewStore(cfg *config.RedisConfig) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		utils.Logger.Warn("redis unavailable, job ledger kept in memory", zap.Error(err))
		return NewMemoryStore(cfg.TTL)
	}

	utils.Logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return &RedisStore{client: client, ttl: cfg.TTL}
}

// RedisStore keeps ledger entries under job:<id> and cached results under
// result:<key>, both expiring after the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *RedisStore) SetJob(ctx context.Context, job *model.JobStatus) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "job:"+job.ID, data, s.ttl).Err()
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.JobStatus, error) {
	data, err := s.client.Get(ctx, "job:"+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var job model.JobStatus
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) SetResult(ctx context.Context, key string, result *model.ProcessResponse) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "result:"+key, data, s.ttl).Err()
}

func (s *RedisStore) GetResult(ctx context.Context, key string) (*model.ProcessResponse, error) {
	data, err := s.client.Get(ctx, "result:"+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var result model.ProcessResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is the single-process fallback ledger. Entries expire lazily
// on read.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	jobs    map[string]memoryEntry
	results map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		jobs:    make(map[string]memoryEntry),
		results: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) SetJob(ctx context.Context, job *model.JobStatus) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.ID] = memoryEntry{data: data, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*model.JobStatus, error) {
	s.mu.RLock()
	entry, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, nil
	}
	var job model.JobStatus
	if err := json.Unmarshal(entry.data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *MemoryStore) SetResult(ctx context.Context, key string, result *model.ProcessResponse) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.results[key] = memoryEntry{data: data, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, key string) (*model.ProcessResponse, error) {
	s.mu.RLock()
	entry, ok := s.results[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, nil
	}
	var result model.ProcessResponse
	if err := json.Unmarshal(entry.data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
