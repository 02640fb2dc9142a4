package solana

import "encoding/json"

// ParsedTransaction is a transaction fetched with jsonParsed encoding and
// full transaction details, the shape the venue decoders operate on.
type ParsedTransaction struct {
	Slot      int64
	Signature string
	BlockTime *int64
	Meta      *ParsedMeta
	Message   *ParsedMessage
}

// ParsedMeta contains transaction metadata including the token balance
// deltas and inner instructions the decoders rely on.
type ParsedMeta struct {
	Err               interface{}           `json:"err"`
	LogMessages       []string              `json:"logMessages"`
	PreTokenBalances  []TokenBalance        `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance        `json:"postTokenBalances"`
	InnerInstructions []InnerInstructionSet `json:"innerInstructions"`
}

// ParsedMessage contains the parsed message of a transaction.
type ParsedMessage struct {
	AccountKeys     []AccountKey `json:"accountKeys"`
	RecentBlockhash string       `json:"recentBlockhash"`
}

// AccountKey is one account referenced by a transaction message.
type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// Pubkeys flattens account keys to their addresses.
func (m *ParsedMessage) Pubkeys() []string {
	keys := make([]string, len(m.AccountKeys))
	for i, k := range m.AccountKeys {
		keys[i] = k.Pubkey
	}
	return keys
}

// TokenBalance is a pre/post token balance record.
type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

// UITokenAmount carries a raw integer amount plus its decimal scale.
type UITokenAmount struct {
	Amount   string `json:"amount"` // raw base units as decimal string
	Decimals int    `json:"decimals"`
}

// InnerInstructionSet groups the inner instructions emitted by one
// top-level instruction.
type InnerInstructionSet struct {
	Index        int                 `json:"index"`
	Instructions []ParsedInstruction `json:"instructions"`
}

// ParsedInstruction is one instruction in jsonParsed form. Instructions of
// programs the RPC node understands carry Parsed; the rest are
// partially-decoded with base58 Data.
type ParsedInstruction struct {
	ProgramID string             `json:"programId"`
	Program   string             `json:"program,omitempty"`
	Parsed    *InstructionDetail `json:"parsed,omitempty"`
	Data      string             `json:"data,omitempty"`
	Accounts  []string           `json:"accounts,omitempty"`
}

// InstructionDetail is the parsed body of a known-program instruction.
type InstructionDetail struct {
	Type string                     `json:"type"`
	Info map[string]json.RawMessage `json:"info"`
}

// UnmarshalJSON tolerates the memo-program case where "parsed" is a bare
// string rather than an object.
func (d *InstructionDetail) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d.Type = s
		return nil
	}
	type alias InstructionDetail
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = InstructionDetail(a)
	return nil
}

// InfoString extracts a string field from the parsed instruction info.
// Numeric fields that some RPC nodes emit unquoted are stringified.
func (d *InstructionDetail) InfoString(key string) string {
	raw, ok := d.Info[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// SignatureStatus is the confirmation state of a submitted transaction.
type SignatureStatus struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// Commitment levels reported in ConfirmationStatus.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// ProgramAccount is one account returned by getProgramAccounts.
type ProgramAccount struct {
	Pubkey string
	Data   []byte // decoded from base64
	Owner  string
}

// TokenAccount is a token account held by an owner, from
// getTokenAccountsByOwner.
type TokenAccount struct {
	Pubkey string
	Mint   string
	Amount string // raw base units
}

// AccountInfo is raw account state from getAccountInfo.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte // decoded from base64
	Executable bool
}
