package testkit

import (
	"sync"
)

// Message is one body handed to a RecordingPublisher.
type Message struct {
	Topic string
	Body  []byte
}

// RecordingPublisher stands in for nsqd.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (p *RecordingPublisher) Publish(topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Body: append([]byte(nil), body...)})
	return p.err
}

// Fail makes every later publish return err after being recorded.
func (p *RecordingPublisher) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *RecordingPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
