package motion

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/recorder"
)

// Subscriber recebe gatilhos de movimento do analisador externo via MQTT e
// encaminha para a máquina de gravação.
type Subscriber struct {
	client mqtt.Client
	topic  string
	rec    *recorder.Recorder
}

func NewSubscriber(broker, topic string, rec *recorder.Recorder) (*Subscriber, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	s := &Subscriber{client: client, topic: topic, rec: rec}
	if token := client.Subscribe(topic, 1, s.onMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe: %w", token.Error())
	}

	logger.Log.Infow("Assinante de gatilhos de movimento conectado",
		"broker", broker,
		"topic", topic)
	return s, nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var trigger recorder.Trigger
	if err := json.Unmarshal(msg.Payload(), &trigger); err != nil {
		logger.Log.Warnw("Gatilho de movimento malformado",
			"topic", msg.Topic(),
			"error", err)
		return
	}
	if trigger.Score < 0 || trigger.Score > 1 {
		logger.Log.Warnw("Gatilho com score fora de [0,1] ignorado",
			"score", trigger.Score)
		return
	}

	s.rec.OnMotionTrigger(trigger)
}

func (s *Subscriber) Close() error {
	s.client.Unsubscribe(s.topic)
	s.client.Disconnect(250)
	return nil
}
