package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	taskTypeAuthEvent = "auth:event"
	queueName         = "audit"
)

// Recorder はイベントの保存先です。Store が実装します。
type Recorder interface {
	Append(ctx context.Context, event Event) error
}

// Manager はイベントのキュー投入とワーカーを管理します。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  Recorder
	logger *slog.Logger
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store Recorder, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: asynq.NewClient(opt),
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeAuthEvent, manager.handleEventTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Publish はイベントをキューに投入します。
func (m *Manager) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskTypeAuthEvent, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue auth event: %w", err)
	}
	return nil
}

func (m *Manager) handleEventTask(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		// 壊れたペイロードは再試行しない
		return fmt.Errorf("decode auth event: %v: %w", err, asynq.SkipRetry)
	}
	if event.Username == "" {
		return fmt.Errorf("missing username in payload: %w", asynq.SkipRetry)
	}

	if err := m.store.Append(ctx, event); err != nil {
		return err
	}
	m.logger.Debug("auth event recorded",
		"event_id", event.ID,
		"type", event.Type,
		"user", event.Username,
	)
	return nil
}
