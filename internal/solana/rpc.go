package solana

import "context"

// RPCClient defines the ledger-node interface the pipeline depends on.
// Implementations are expected to retry transient failures internally.
type RPCClient interface {
	// GetParsedTransaction retrieves a transaction with jsonParsed encoding.
	// Returns nil when the transaction is not (yet) known to the node.
	GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)

	// GetTokenDecimals returns the decimal scale of a mint.
	GetTokenDecimals(ctx context.Context, mint string) (int, error)

	// GetSignatureStatus returns the confirmation state of a signature,
	// nil when the node has not seen it.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)

	// GetLatestBlockhash returns a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// GetProgramAccounts queries accounts owned by a program, filtered.
	GetProgramAccounts(ctx context.Context, program string, filters []AccountFilter) ([]ProgramAccount, error)

	// GetTokenAccountsByOwner lists the owner's token accounts for a mint.
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt balance for
	// an account of the given size.
	GetMinimumBalanceForRentExemption(ctx context.Context, size int) (uint64, error)

	// GetAccountInfo fetches raw account state, nil when absent.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// AccountFilter is a getProgramAccounts filter: exactly one of DataSize or
// Memcmp is set.
type AccountFilter struct {
	DataSize int
	Memcmp   *MemcmpFilter
}

// MemcmpFilter matches base58-encoded bytes at a byte offset.
type MemcmpFilter struct {
	Offset int
	Bytes  string
}
