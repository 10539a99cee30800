package client

import (
	"context"

	"linkvault/internal/bookmarks/domain/model"
)

// Filter narrows a change-feed channel to one owner's rows in one table.
type Filter struct {
	Table   string
	OwnerID string
}

// Channel is one live, owner-filtered subscription.
//
// Confirmed fires after every successful subscribe, including resubscribes
// after a transport drop, so consumers can refetch whatever they missed.
// Events streams row changes; Errs reports transport trouble without closing
// the channel. Close tears the subscription down; no sends happen after it
// returns.
type Channel interface {
	Confirmed() <-chan struct{}
	Events() <-chan model.ChangeEvent
	Errs() <-chan error
	Close() error
}

// ChangeFeed opens owner-filtered subscriptions. Implementations own
// reconnection: a dropped transport is redialed, resubscribed and confirmed
// again without the consumer's involvement.
type ChangeFeed interface {
	Open(ctx context.Context, filter Filter) (Channel, error)
}
