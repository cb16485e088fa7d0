package mq

// InMemoryQueue is a synchronous in-process queue for tests and
// single-binary deployments.
type InMemoryQueue struct {
	handlers map[string][]func([]byte) error
	messages map[string][][]byte
}

var _ MessageQueue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func([]byte) error),
		messages: make(map[string][][]byte),
	}
}

// Publish delivers the message to every subscribed handler synchronously.
func (q *InMemoryQueue) Publish(topic string, message []byte) error {
	q.messages[topic] = append(q.messages[topic], message)

	for _, handler := range q.handlers[topic] {
		if err := handler(message); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for the topic.
func (q *InMemoryQueue) Subscribe(topic string, handler func([]byte) error) error {
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close is a no-op.
func (q *InMemoryQueue) Close() error {
	return nil
}

// GetMessages returns every message published to the topic.
func (q *InMemoryQueue) GetMessages(topic string) [][]byte {
	return q.messages[topic]
}
