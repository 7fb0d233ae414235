package queue

// Publisher hands a message body to a broker topic.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// BatchPublisher is optional; when available, callers can reduce nsqd round-trips.
type BatchPublisher interface {
	Publisher
	MultiPublish(topic string, bodies [][]byte) error
}
