package domain

// Snapshot is the persisted portfolio state document: both portfolio maps,
// read once at startup and overwritten on every mutation.
type Snapshot struct {
	Peer Portfolio `json:"peerPortfolio"`
	Own  Portfolio `json:"ownPortfolio"`
}

// NewSnapshot creates an empty snapshot with both maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{Peer: make(Portfolio), Own: make(Portfolio)}
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{Peer: s.Peer.Clone(), Own: s.Own.Clone()}
}

// TradeStatus is the terminal state of a submitted mirror trade.
type TradeStatus string

const (
	TradeConfirmed TradeStatus = "confirmed"
	TradeTimedOut  TradeStatus = "timed_out"
	TradeRejected  TradeStatus = "rejected"
)

// TradeRecord is one executed (or attempted) mirror trade, keyed by the
// operator's transaction signature.
type TradeRecord struct {
	Signature     string      // own transaction signature, unique
	PeerSignature string      // the watched wallet's transaction that triggered it
	PeerWallet    string
	Mint          string
	Venue         string
	Side          EntryType
	SolAmount     float64
	TokenAmount   float64
	Status        TradeStatus
	SubmittedAt   int64 // unix ms
	ConfirmedAt   *int64
}

// TradeObservation is one decoded peer trade, kept for analytics.
type TradeObservation struct {
	Signature   string
	Slot        int64
	Wallet      string
	Mint        string
	Venue       string
	IsBuy       bool
	SolAmount   float64
	TokenAmount float64
	ObservedAt  int64 // unix ms
}
