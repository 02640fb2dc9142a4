package solana

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// Signer signs a compiled transaction message.
type Signer interface {
	// PublicKey returns the base58 address of the signing key.
	PublicKey() string
	// Sign returns the 64-byte ed25519 signature of msg.
	Sign(msg []byte) []byte
}

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Meta builds a writable account meta.
func Meta(pubkey string, signer bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: signer, IsWritable: true}
}

// MetaReadonly builds a read-only account meta.
func MetaReadonly(pubkey string, signer bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: signer}
}

// Instruction is one uncompiled instruction.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// MessageHeader encodes the signer/readonly account counts.
type MessageHeader struct {
	NumRequiredSignatures       int
	NumReadonlySignedAccounts   int
	NumReadonlyUnsignedAccounts int
}

// CompiledInstruction references message accounts by index.
type CompiledInstruction struct {
	ProgramIDIndex int
	AccountIndexes []int
	Data           []byte
}

// Message is a compiled legacy transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []string
	RecentBlockhash string
	Instructions    []CompiledInstruction
}

// Transaction is a legacy transaction: signatures plus compiled message.
type Transaction struct {
	Signatures [][]byte // one 64-byte slot per required signature
	Message    Message
}

// CompileTransaction orders and dedupes account metas, compiles the
// instructions against the resulting key table and returns an unsigned
// transaction. The fee payer always occupies index 0.
func CompileTransaction(feePayer, recentBlockhash string, instrs []Instruction) (*Transaction, error) {
	if feePayer == "" {
		return nil, fmt.Errorf("fee payer required")
	}
	if len(instrs) == 0 {
		return nil, fmt.Errorf("no instructions")
	}

	// Merge metas: any signer/writable reference wins.
	merged := map[string]*AccountMeta{
		feePayer: {Pubkey: feePayer, IsSigner: true, IsWritable: true},
	}
	order := []string{feePayer}
	upsert := func(m AccountMeta) {
		if existing, ok := merged[m.Pubkey]; ok {
			existing.IsSigner = existing.IsSigner || m.IsSigner
			existing.IsWritable = existing.IsWritable || m.IsWritable
			return
		}
		cp := m
		merged[m.Pubkey] = &cp
		order = append(order, m.Pubkey)
	}
	for _, ix := range instrs {
		for _, m := range ix.Accounts {
			upsert(m)
		}
		upsert(MetaReadonly(ix.ProgramID, false))
	}

	// Key table order: fee payer, writable signers, readonly signers,
	// writable non-signers, readonly non-signers.
	var keys []string
	pass := func(signer, writable bool) {
		for _, pk := range order {
			m := merged[pk]
			if pk != feePayer && m.IsSigner == signer && m.IsWritable == writable {
				keys = append(keys, pk)
			}
		}
	}
	keys = append(keys, feePayer)
	pass(true, true)
	pass(true, false)
	pass(false, true)
	pass(false, false)

	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	var header MessageHeader
	for _, k := range keys {
		m := merged[k]
		if m.IsSigner {
			header.NumRequiredSignatures++
			if !m.IsWritable {
				header.NumReadonlySignedAccounts++
			}
		} else if !m.IsWritable {
			header.NumReadonlyUnsignedAccounts++
		}
	}

	compiled := make([]CompiledInstruction, len(instrs))
	for i, ix := range instrs {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, m := range ix.Accounts {
			ci.AccountIndexes = append(ci.AccountIndexes, index[m.Pubkey])
		}
		compiled[i] = ci
	}

	return &Transaction{
		Signatures: make([][]byte, header.NumRequiredSignatures),
		Message: Message{
			Header:          header,
			AccountKeys:     keys,
			RecentBlockhash: recentBlockhash,
			Instructions:    compiled,
		},
	}, nil
}

// Sign fills the signature slot of each provided signer. All remaining
// unsigned slots must belong to other parties.
func (tx *Transaction) Sign(signers ...Signer) error {
	msg, err := tx.Message.Serialize()
	if err != nil {
		return err
	}
	for _, s := range signers {
		idx := -1
		for i := 0; i < tx.Message.Header.NumRequiredSignatures && i < len(tx.Message.AccountKeys); i++ {
			if tx.Message.AccountKeys[i] == s.PublicKey() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("signer %s not among required signers", s.PublicKey())
		}
		tx.Signatures[idx] = s.Sign(msg)
	}
	return nil
}

// Signature returns the transaction's primary signature, base58-encoded.
func (tx *Transaction) Signature() string {
	if len(tx.Signatures) == 0 || len(tx.Signatures[0]) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}

// Serialize encodes the full signed transaction wire form.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	writeCompactU16(&buf, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		if len(sig) != 64 {
			return nil, fmt.Errorf("missing or malformed signature")
		}
		buf.Write(sig)
	}
	msg, err := tx.Message.Serialize()
	if err != nil {
		return nil, err
	}
	buf.Write(msg)
	return buf.Bytes(), nil
}

// Serialize encodes the message wire form.
func (m *Message) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Header.NumRequiredSignatures))
	buf.WriteByte(byte(m.Header.NumReadonlySignedAccounts))
	buf.WriteByte(byte(m.Header.NumReadonlyUnsignedAccounts))

	writeCompactU16(&buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		raw, err := decodePubkey(k)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}

	bh, err := decodePubkey(m.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}
	buf.Write(bh)

	writeCompactU16(&buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf.WriteByte(byte(ix.ProgramIDIndex))
		writeCompactU16(&buf, len(ix.AccountIndexes))
		for _, idx := range ix.AccountIndexes {
			buf.WriteByte(byte(idx))
		}
		writeCompactU16(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}
	return buf.Bytes(), nil
}

// DeserializeTransaction decodes a serialized legacy transaction, e.g. the
// aggregator API's prebuilt swap transactions.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := &byteReader{data: data}

	sigCount, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}
	sigs := make([][]byte, sigCount)
	for i := 0; i < sigCount; i++ {
		sig, err := r.take(64)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		sigs[i] = sig
	}

	var m Message
	hdr, err := r.take(3)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	m.Header = MessageHeader{
		NumRequiredSignatures:       int(hdr[0]),
		NumReadonlySignedAccounts:   int(hdr[1]),
		NumReadonlyUnsignedAccounts: int(hdr[2]),
	}

	keyCount, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("key count: %w", err)
	}
	m.AccountKeys = make([]string, keyCount)
	for i := 0; i < keyCount; i++ {
		raw, err := r.take(32)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		m.AccountKeys[i] = base58.Encode(raw)
	}

	bh, err := r.take(32)
	if err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}
	m.RecentBlockhash = base58.Encode(bh)

	ixCount, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("instruction count: %w", err)
	}
	m.Instructions = make([]CompiledInstruction, ixCount)
	for i := 0; i < ixCount; i++ {
		pi, err := r.take(1)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		accCount, err := r.compactU16()
		if err != nil {
			return nil, fmt.Errorf("instruction %d accounts: %w", i, err)
		}
		idxs := make([]int, accCount)
		for j := 0; j < accCount; j++ {
			b, err := r.take(1)
			if err != nil {
				return nil, fmt.Errorf("instruction %d account %d: %w", i, j, err)
			}
			idxs[j] = int(b[0])
		}
		dataLen, err := r.compactU16()
		if err != nil {
			return nil, fmt.Errorf("instruction %d data len: %w", i, err)
		}
		d, err := r.take(dataLen)
		if err != nil {
			return nil, fmt.Errorf("instruction %d data: %w", i, err)
		}
		m.Instructions[i] = CompiledInstruction{
			ProgramIDIndex: int(pi[0]),
			AccountIndexes: idxs,
			Data:           d,
		}
	}

	return &Transaction{Signatures: sigs, Message: m}, nil
}

// Decompile expands the message back into standalone instructions so new
// ones can be appended and the transaction recompiled.
func (tx *Transaction) Decompile() (feePayer, recentBlockhash string, instrs []Instruction, err error) {
	m := &tx.Message
	if len(m.AccountKeys) == 0 {
		return "", "", nil, fmt.Errorf("empty account table")
	}

	isSigner := func(i int) bool { return i < m.Header.NumRequiredSignatures }
	isWritable := func(i int) bool {
		if isSigner(i) {
			return i < m.Header.NumRequiredSignatures-m.Header.NumReadonlySignedAccounts
		}
		return i < len(m.AccountKeys)-m.Header.NumReadonlyUnsignedAccounts
	}

	instrs = make([]Instruction, len(m.Instructions))
	for i, ci := range m.Instructions {
		if ci.ProgramIDIndex >= len(m.AccountKeys) {
			return "", "", nil, fmt.Errorf("instruction %d: program index out of range", i)
		}
		ix := Instruction{
			ProgramID: m.AccountKeys[ci.ProgramIDIndex],
			Data:      ci.Data,
		}
		for _, idx := range ci.AccountIndexes {
			if idx >= len(m.AccountKeys) {
				return "", "", nil, fmt.Errorf("instruction %d: account index out of range", i)
			}
			ix.Accounts = append(ix.Accounts, AccountMeta{
				Pubkey:     m.AccountKeys[idx],
				IsSigner:   isSigner(idx),
				IsWritable: isWritable(idx),
			})
		}
		instrs[i] = ix
	}
	return m.AccountKeys[0], m.RecentBlockhash, instrs, nil
}

// decodePubkey decodes a base58 pubkey-sized value.
func decodePubkey(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", s, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("decode %q: got %d bytes, want 32", s, len(raw))
	}
	return raw, nil
}

// writeCompactU16 writes a shortvec-encoded length.
func writeCompactU16(buf *bytes.Buffer, v int) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// byteReader is a bounds-checked cursor over raw transaction bytes.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of data at %d (+%d of %d)", r.pos, n, len(r.data))
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) compactU16() (int, error) {
	v := 0
	shift := 0
	for {
		b, err := r.take(1)
		if err != nil {
			return 0, err
		}
		v |= int(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift > 14 {
			return 0, fmt.Errorf("compact-u16 overflow")
		}
	}
}
