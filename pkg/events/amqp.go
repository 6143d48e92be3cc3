package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/T3-Labs/coop-cam/pkg/logger"
)

type EventType string

const (
	EventTypeConnected         EventType = "connected"
	EventTypeDisconnected      EventType = "disconnected"
	EventTypeRecordingComplete EventType = "recording_complete"
	EventTypeRecordingFailed   EventType = "recording_failed"
)

// AMQPPublisher espelha os eventos do emitter para um exchange topic, para
// colaboradores externos (dashboards, notificações).
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	enabled    bool
}

func NewAMQPPublisher(amqpURL, exchange, routingKey string, enabled bool) (*AMQPPublisher, error) {
	if !enabled {
		return &AMQPPublisher{enabled: false}, nil
	}

	publisher := &AMQPPublisher{
		exchange:   exchange,
		routingKey: routingKey,
		enabled:    true,
	}

	// Tenta conectar com retry
	var err error
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		err = publisher.connect(amqpURL)
		if err == nil {
			logger.Log.Info("Conectado ao RabbitMQ com sucesso")
			return publisher, nil
		}
		logger.Log.Warnw("Tentativa de conexão ao RabbitMQ falhou, tentando novamente em 5s",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err)
		time.Sleep(5 * time.Second)
	}

	return nil, fmt.Errorf("falha ao conectar ao RabbitMQ após %d tentativas: %w", maxRetries, err)
}

func (p *AMQPPublisher) connect(amqpURL string) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare an exchange: %w", err)
	}

	p.conn = conn
	p.channel = ch
	return nil
}

// Enabled retorna true quando o espelhamento AMQP está ativo.
func (p *AMQPPublisher) Enabled() bool {
	return p.enabled
}

type streamStatusEvent struct {
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type recordingCompleteEvent struct {
	EventType       EventType `json:"event_type"`
	JobID           string    `json:"job_id"`
	OutputPath      string    `json:"output_path"`
	FrameCount      int       `json:"frame_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	Score           float64   `json:"score"`
	Timestamp       time.Time `json:"timestamp"`
}

type recordingFailedEvent struct {
	EventType EventType `json:"event_type"`
	JobID     string    `json:"job_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *AMQPPublisher) PublishStatus(connected bool) error {
	if !p.enabled {
		return nil
	}

	eventType := EventTypeConnected
	suffix := ".connected"
	if !connected {
		eventType = EventTypeDisconnected
		suffix = ".disconnected"
	}

	return p.publish(suffix, streamStatusEvent{
		EventType: eventType,
		Timestamp: time.Now(),
	})
}

func (p *AMQPPublisher) PublishRecordingComplete(ev RecordingComplete) error {
	if !p.enabled {
		return nil
	}

	return p.publish(".recording", recordingCompleteEvent{
		EventType:       EventTypeRecordingComplete,
		JobID:           ev.JobID,
		OutputPath:      ev.OutputPath,
		FrameCount:      ev.FrameCount,
		DurationSeconds: ev.DurationSeconds,
		Score:           ev.Score,
		Timestamp:       ev.Timestamp,
	})
}

func (p *AMQPPublisher) PublishRecordingFailed(ev RecordingFailed) error {
	if !p.enabled {
		return nil
	}

	return p.publish(".recording", recordingFailedEvent{
		EventType: EventTypeRecordingFailed,
		JobID:     ev.JobID,
		Reason:    ev.Reason,
		Timestamp: ev.Timestamp,
	})
}

func (p *AMQPPublisher) publish(routingSuffix string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		p.exchange,
		p.routingKey+routingSuffix,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Attach espelha eventos do emitter no exchange. Erros de publicação são
// registrados e descartados: o caminho de frames nunca depende do broker.
func (p *AMQPPublisher) Attach(emitter *Emitter) {
	if !p.enabled {
		return
	}

	emitter.SubscribeStatus(func(connected bool) {
		if err := p.PublishStatus(connected); err != nil {
			logger.Log.Errorw("Erro ao publicar evento de status", "error", err)
		}
	})

	emitter.SubscribeRecordings(
		func(ev RecordingComplete) {
			if err := p.PublishRecordingComplete(ev); err != nil {
				logger.Log.Errorw("Erro ao publicar evento de gravação", "error", err)
			}
		},
		func(ev RecordingFailed) {
			if err := p.PublishRecordingFailed(ev); err != nil {
				logger.Log.Errorw("Erro ao publicar evento de falha de gravação", "error", err)
			}
		},
	)
}
