package mq

// MessageQueue is the publish/subscribe contract shared by the Kafka
// and in-memory implementations.
type MessageQueue interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string, handler func(message []byte) error) error
	Close() error
}
