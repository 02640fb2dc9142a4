package solana

import "context"

// FeedClient defines the real-time transaction feed interface.
type FeedClient interface {
	// SubscribeTransactions subscribes to confirmed transactions touching
	// any of the filtered accounts.
	SubscribeTransactions(ctx context.Context, filter TxFilter) (<-chan TxNotification, error)

	// Close closes the feed connection.
	Close() error
}

// TxFilter selects which transactions the feed delivers.
type TxFilter struct {
	// AccountInclude filters transactions mentioning any of these addresses.
	AccountInclude []string
}

// TxNotification is one transaction delivered by the feed, already parsed.
type TxNotification struct {
	Signature   string
	Slot        int64
	Transaction *ParsedTransaction
}
