package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hubpsp-backend/internal/config"
	"hubpsp-backend/internal/models"
)

// RedisService stores snapshots as JSON values and the movement journal as a capped
// list per user, newest first. It also backs request rate limiting.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) SaveUserState(ctx context.Context, state *models.PlatformUserState) error {
	key := fmt.Sprintf(KeyUserState, state.UserID)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisService) LoadUserState(ctx context.Context, userID string) (*models.PlatformUserState, error) {
	key := fmt.Sprintf(KeyUserState, userID)

	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user state: %w", err)
	}

	var state models.PlatformUserState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}

	return &state, nil
}

func (s *RedisService) DeleteUserState(ctx context.Context, userID string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyUserState, userID),
		fmt.Sprintf(KeyUserMovements, userID),
	).Err()
}

func (s *RedisService) AppendMovements(ctx context.Context, userID string, movements []models.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(movements))
	for _, m := range movements {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal movement: %w", err)
		}
		values = append(values, data)
	}

	key := fmt.Sprintf(KeyUserMovements, userID)

	tx := s.client.TxPipeline()
	tx.LPush(ctx, key, values...)
	tx.LTrim(ctx, key, 0, MaxMovementHistory-1)
	tx.Expire(ctx, key, TTLMovements)

	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append movements: %w", err)
	}
	return nil
}

func (s *RedisService) ListMovements(ctx context.Context, userID string, limit int64) ([]models.Movement, error) {
	limit = clampHistoryLimit(limit)

	key := fmt.Sprintf(KeyUserMovements, userID)

	items, err := s.client.LRange(ctx, key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get movements: %w", err)
	}

	movements := make([]models.Movement, 0, len(items))
	for _, item := range items {
		var m models.Movement
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal movement: %w", err)
		}
		movements = append(movements, m)
	}

	return movements, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, userID, action)).Err()
}
