// Пакет events — публикация доменных событий реестра в RabbitMQ.
// События потребляет HTTP-слой и внешние аудит-консьюмеры.
// Привилегированные чтения публикуются в отдельный поток
// (privileged_access), чтобы их можно было аудировать независимо
// от обычных обращений.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Типы событий реестра.
const (
	TypeFileCreated      = "registry.file_created"
	TypeFileShared       = "registry.file_shared"
	TypeFileDeleted      = "registry.file_deleted"
	TypeFileAccessed     = "registry.file_accessed"
	TypePrivilegedAccess = "registry.privileged_access"
)

// Event — доменное событие реестра.
type Event struct {
	// ID — уникальный идентификатор события.
	ID string `json:"id"`
	// Type — тип события (registry.*).
	Type string `json:"type"`
	// FileID — идентификатор файла.
	FileID int64 `json:"file_id"`
	// Principal — инициатор действия.
	Principal string `json:"principal"`
	// Recipient — получатель шаринга (только для file_shared).
	Recipient string `json:"recipient,omitempty"`
	// Action — действие из журнала доступа (для file_accessed и privileged_access).
	Action string `json:"action,omitempty"`
	// Timestamp — время события (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// New создаёт событие с заполненными ID и Timestamp.
func New(eventType string, fileID int64, principal string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		FileID:    fileID,
		Principal: principal,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher — публикация событий реестра.
// Реализуется RabbitPublisher; в тестах — NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// RabbitPublisher — Publisher поверх RabbitMQ (amqp091).
// Каждый тип события публикуется в очередь с именем типа,
// сообщения — durable JSON.
type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewRabbitPublisher подключается к RabbitMQ и объявляет очереди
// всех типов событий.
func NewRabbitPublisher(url string, logger *slog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка создания канала RabbitMQ: %w", err)
	}

	queues := []string{
		TypeFileCreated, TypeFileShared, TypeFileDeleted,
		TypeFileAccessed, TypePrivilegedAccess,
	}
	for _, q := range queues {
		if _, err := channel.QueueDeclare(q, true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("ошибка объявления очереди %s: %w", q, err)
		}
	}

	logger.Info("Подключение к RabbitMQ установлено",
		slog.Int("queues", len(queues)),
	)

	return &RabbitPublisher{
		conn:    conn,
		channel: channel,
		logger:  logger.With(slog.String("component", "event_publisher")),
	}, nil
}

// Publish сериализует событие в JSON и публикует в очередь его типа.
func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",     // exchange по умолчанию
		e.Type, // routing key == имя очереди
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации события %s: %w", e.Type, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// ReadinessChecker — проверка доступности RabbitMQ для health endpoint.
type ReadinessChecker struct {
	pub *RabbitPublisher
}

// NewReadinessChecker создаёт проверку готовности RabbitMQ.
func NewReadinessChecker(pub *RabbitPublisher) *ReadinessChecker {
	return &ReadinessChecker{pub: pub}
}

// CheckReady проверяет, что соединение с RabbitMQ не закрыто.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	if c.pub == nil || c.pub.conn == nil || c.pub.conn.IsClosed() {
		return "fail", "соединение с RabbitMQ закрыто"
	}
	return "ok", "соединение активно"
}

// NopPublisher — Publisher-заглушка для тестов и запуска без брокера.
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(_ context.Context, _ Event) error { return nil }

// Close ничего не делает.
func (NopPublisher) Close() error { return nil }
