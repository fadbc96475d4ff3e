package logger

import (
	"io"
	"os"
	"sync"
)

// Broadcaster is an io.Writer that copies every log line to stdout and to live subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	out         io.Writer
	subscribers map[chan string]bool
}

var Instance = NewBroadcaster(os.Stdout)

func NewBroadcaster(out io.Writer) *Broadcaster {
	return &Broadcaster{
		out:         out,
		subscribers: make(map[chan string]bool),
	}
}

func (b *Broadcaster) Write(p []byte) (n int, err error) {
	msg := string(p)

	if b.out != nil {
		b.out.Write(p)
	}

	b.mu.Lock()
	for ch := range b.subscribers {
		// slow readers drop lines instead of blocking the logger
		select {
		case ch <- msg:
		default:
		}
	}
	b.mu.Unlock()

	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer.
func (b *Broadcaster) Sync() error {
	return nil
}

func (b *Broadcaster) Subscribe() chan string {
	ch := make(chan string, 100)
	b.mu.Lock()
	b.subscribers[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}
