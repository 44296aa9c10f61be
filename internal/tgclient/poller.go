package tgclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
)

// UpdateHandler processes one inbound update.
type UpdateHandler func(ctx context.Context, u Update)

// Poller drives long polling and dispatches every update in its own
// goroutine so a slow handler never stalls the poll loop.
type Poller struct {
	client  *Client
	handler UpdateHandler
	timeout time.Duration
}

func NewPoller(client *Client, handler UpdateHandler) *Poller {
	return &Poller{client: client, handler: handler, timeout: 30 * time.Second}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			obslog.L().Warn("poll_error", zap.Error(err))
			if serr := sleepCtx(ctx, time.Second); serr != nil {
				return serr
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go p.handler(ctx, u)
		}
	}
}
