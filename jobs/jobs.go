package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/marcus-crane/soloist/playback"
)

// Broadcast unconditionally every N polls so client progress indicators
// stay live even when nothing discrete changes.
const broadcastEveryNPolls = 4

type Broadcaster interface {
	BroadcastState()
}

// Poller runs one reconciliation pass per scheduler tick and applies the
// broadcast policy: immediately on change, every Nth poll regardless.
type Poller struct {
	engine      *playback.Engine
	broadcaster Broadcaster
	timeout     time.Duration
	pollCount   int
}

func NewPoller(engine *playback.Engine, broadcaster Broadcaster, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Poller{
		engine:      engine,
		broadcaster: broadcaster,
		timeout:     timeout,
	}
}

func (p *Poller) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	changed, _ := p.engine.Tick(ctx)

	p.pollCount++
	heartbeat := p.pollCount >= broadcastEveryNPolls
	if heartbeat {
		p.pollCount = 0
	}
	if changed || heartbeat {
		p.broadcaster.BroadcastState()
	}
}

func SetupInBackground(engine *playback.Engine, broadcaster Broadcaster, interval time.Duration) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)

	poller := NewPoller(engine, broadcaster, interval*8)
	s.Every(interval).Do(poller.Poll)

	log.Print("Jobs scheduled. Scheduler not running yet.")

	return s
}
