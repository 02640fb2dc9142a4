package solana

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Native program and sysvar addresses.
const (
	SystemProgram          = "11111111111111111111111111111111"
	TokenProgram           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgram = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgram   = "ComputeBudget111111111111111111111111111111"
	RentSysvar             = "SysvarRent111111111111111111111111111111111"
)

// TokenAccountSize is the byte size of an SPL token account.
const TokenAccountSize = 165

// System program instruction indexes.
const (
	sysCreateAccountWithSeed uint32 = 3
	sysTransfer              uint32 = 2
)

// SPL token program instruction indexes.
const (
	tokInitializeAccount byte = 1
	tokCloseAccount      byte = 9
)

// Compute budget instruction discriminators.
const (
	cbSetComputeUnitLimit byte = 2
	cbSetComputeUnitPrice byte = 3
)

// TransferInstruction moves lamports between system accounts.
func TransferInstruction(from, to string, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], sysTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return Instruction{
		ProgramID: SystemProgram,
		Accounts: []AccountMeta{
			Meta(from, true),
			Meta(to, false),
		},
		Data: data,
	}
}

// ComputeUnitLimitInstruction caps the compute units of a transaction.
func ComputeUnitLimitInstruction(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = cbSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// ComputeUnitPriceInstruction sets the priority fee in micro-lamports per
// compute unit.
func ComputeUnitPriceInstruction(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = cbSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// CreateAccountWithSeedInstruction creates an account at an address derived
// from base+seed, funded and sized by the caller.
func CreateAccountWithSeedInstruction(from, newAccount, base, seed, owner string, lamports, space uint64) (Instruction, error) {
	baseRaw, err := decodePubkey(base)
	if err != nil {
		return Instruction{}, err
	}
	ownerRaw, err := decodePubkey(owner)
	if err != nil {
		return Instruction{}, err
	}

	data := make([]byte, 0, 4+32+8+len(seed)+8+8+32)
	data = binary.LittleEndian.AppendUint32(data, sysCreateAccountWithSeed)
	data = append(data, baseRaw...)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(seed)))
	data = append(data, seed...)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, ownerRaw...)

	return Instruction{
		ProgramID: SystemProgram,
		Accounts: []AccountMeta{
			Meta(from, true),
			Meta(newAccount, false),
		},
		Data: data,
	}, nil
}

// InitializeTokenAccountInstruction initializes a token account for a mint.
func InitializeTokenAccountInstruction(account, mint, owner string) Instruction {
	return Instruction{
		ProgramID: TokenProgram,
		Accounts: []AccountMeta{
			Meta(account, false),
			MetaReadonly(mint, false),
			MetaReadonly(owner, false),
			MetaReadonly(RentSysvar, false),
		},
		Data: []byte{tokInitializeAccount},
	}
}

// CloseTokenAccountInstruction closes a token account, reclaiming lamports.
func CloseTokenAccountInstruction(account, dest, owner string) Instruction {
	return Instruction{
		ProgramID: TokenProgram,
		Accounts: []AccountMeta{
			Meta(account, false),
			Meta(dest, false),
			MetaReadonly(owner, true),
		},
		Data: []byte{tokCloseAccount},
	}
}

// CreateAssociatedTokenAccountInstruction creates the canonical associated
// token account for (owner, mint), paid by payer.
func CreateAssociatedTokenAccountInstruction(payer, ata, owner, mint string) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgram,
		Accounts: []AccountMeta{
			Meta(payer, true),
			Meta(ata, false),
			MetaReadonly(owner, false),
			MetaReadonly(mint, false),
			MetaReadonly(SystemProgram, false),
			MetaReadonly(TokenProgram, false),
		},
	}
}

// FindAssociatedTokenAddress derives the canonical associated token account
// address for (owner, mint).
func FindAssociatedTokenAddress(owner, mint string) (string, error) {
	ownerRaw, err := decodePubkey(owner)
	if err != nil {
		return "", err
	}
	mintRaw, err := decodePubkey(mint)
	if err != nil {
		return "", err
	}
	tokenRaw, err := decodePubkey(TokenProgram)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{ownerRaw, tokenRaw, mintRaw}, AssociatedTokenProgram)
	return addr, err
}

// FindProgramAddress derives the first off-curve program address for the
// seeds, searching bump values downward from 255.
func FindProgramAddress(seeds [][]byte, programID string) (string, byte, error) {
	for bump := 255; bump >= 0; bump-- {
		withBump := append(append([][]byte{}, seeds...), []byte{byte(bump)})
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, byte(bump), nil
		}
	}
	return "", 0, fmt.Errorf("no viable program address for seeds")
}

// CreateProgramAddress derives the program address for exact seeds. Fails
// when the result lands on the curve.
func CreateProgramAddress(seeds [][]byte, programID string) (string, error) {
	programRaw, err := decodePubkey(programID)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programRaw)
	h.Write([]byte("ProgramDerivedAddress"))
	candidate := h.Sum(nil)
	if isOnCurve(candidate) {
		return "", fmt.Errorf("derived address is on the curve")
	}
	return base58.Encode(candidate), nil
}

// CreateWithSeedAddress derives the account address used by
// CreateAccountWithSeedInstruction.
func CreateWithSeedAddress(base, seed, owner string) (string, error) {
	baseRaw, err := decodePubkey(base)
	if err != nil {
		return "", err
	}
	ownerRaw, err := decodePubkey(owner)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(baseRaw)
	h.Write([]byte(seed))
	h.Write(ownerRaw)
	return base58.Encode(h.Sum(nil)), nil
}

// isOnCurve reports whether the 32 bytes decode to a valid edwards25519
// point. Program-derived addresses must be off-curve.
func isOnCurve(point []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
