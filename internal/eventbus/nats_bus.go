package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	nats "github.com/nats-io/nats.go"
)

// NATSBus реализует EventBus поверх обычного NATS Pub/Sub.
// События не персистятся: подписчики получают только то, что
// опубликовано после подписки.
type NATSBus struct {
	nc        *nats.Conn
	published uint64
	consumed  uint64
	dropped   uint64
}

const natsSubjectPrefix = "levels.events."

// NewNATSBus подключается к кластеру NATS. url: nats://127.0.0.1:4222.
func NewNATSBus(url string) (*NATSBus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSBus{nc: nc}, nil
}

// Publish сериализует Envelope в JSON и публикует в subject levels.events.<type>.
func (nb *NATSBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&nb.dropped, 1)
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := nb.nc.Publish(natsSubjectPrefix+ev.EventType, data); err != nil {
		atomic.AddUint64(&nb.dropped, 1)
		return fmt.Errorf("nats publish: %w", err)
	}
	atomic.AddUint64(&nb.published, 1)
	return nil
}

// Subscribe подписывается на subject по фильтру типов.
// Фильтр по источникам применяется на стороне подписчика.
func (nb *NATSBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := natsSubjectPrefix + "*"
	if len(f.Types) == 1 {
		subj = natsSubjectPrefix + f.Types[0]
	}

	natSub, err := nb.nc.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&nb.dropped, 1)
			return
		}
		if !matchFilter(&ev, f) {
			return
		}
		h(ctx, &ev)
		atomic.AddUint64(&nb.consumed, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	return &natsSub{natSub}, nil
}

// Metrics возвращает текущие метрики.
func (nb *NATSBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&nb.published),
		Consumed:  atomic.LoadUint64(&nb.consumed),
		Dropped:   atomic.LoadUint64(&nb.dropped),
	}
}

// Close дренирует соединение с NATS.
func (nb *NATSBus) Close() error {
	return nb.nc.Drain()
}

// natsSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type natsSub struct {
	s *nats.Subscription
}

func (n *natsSub) Unsubscribe() {
	_ = n.s.Unsubscribe()
}
