package venue

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Anchor event discriminators: the first 8 bytes of
// sha256("event:<EventName>"). Events are surfaced as self-CPI instruction
// payloads carrying an 8-byte instruction prefix, the event discriminator,
// then the borsh-encoded body.
var (
	pumpTradeEventDisc   = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}
	jupiterSwapEventDisc = [8]byte{64, 198, 205, 232, 38, 8, 113, 226}
)

// pumpTrade is the pump.fun TradeEvent body.
type pumpTrade struct {
	Mint                 string
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 string
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
}

// swapLeg is one Jupiter SwapEvent: a single hop of a possibly multi-leg
// route.
type swapLeg struct {
	AMM          string
	InputMint    string
	InputAmount  uint64
	OutputMint   string
	OutputAmount uint64
}

// eventBody strips the instruction prefix from a base58 payload and returns
// the body when the event discriminator matches.
func eventBody(base58Data string, disc [8]byte, bodyLen int) ([]byte, bool) {
	raw, err := base58.Decode(base58Data)
	if err != nil {
		return nil, false
	}
	if len(raw) < 16+bodyLen {
		return nil, false
	}
	raw = raw[8:]
	for i := 0; i < 8; i++ {
		if raw[i] != disc[i] {
			return nil, false
		}
	}
	return raw[8:], true
}

// decodePumpTrade decodes a pump.fun TradeEvent payload. Later program
// versions append extra reserve fields; only the stable prefix is read.
func decodePumpTrade(base58Data string) (*pumpTrade, bool) {
	// mint(32) solAmount(8) tokenAmount(8) isBuy(1) user(32) timestamp(8)
	// virtualSolReserves(8) virtualTokenReserves(8)
	body, ok := eventBody(base58Data, pumpTradeEventDisc, 105)
	if !ok {
		return nil, false
	}
	return &pumpTrade{
		Mint:                 base58.Encode(body[0:32]),
		SolAmount:            binary.LittleEndian.Uint64(body[32:40]),
		TokenAmount:          binary.LittleEndian.Uint64(body[40:48]),
		IsBuy:                body[48] != 0,
		User:                 base58.Encode(body[49:81]),
		Timestamp:            int64(binary.LittleEndian.Uint64(body[81:89])),
		VirtualSolReserves:   binary.LittleEndian.Uint64(body[89:97]),
		VirtualTokenReserves: binary.LittleEndian.Uint64(body[97:105]),
	}, true
}

// decodeSwapLeg decodes a Jupiter SwapEvent payload.
func decodeSwapLeg(base58Data string) (*swapLeg, bool) {
	// amm(32) inputMint(32) inputAmount(8) outputMint(32) outputAmount(8)
	body, ok := eventBody(base58Data, jupiterSwapEventDisc, 112)
	if !ok {
		return nil, false
	}
	return &swapLeg{
		AMM:          base58.Encode(body[0:32]),
		InputMint:    base58.Encode(body[32:64]),
		InputAmount:  binary.LittleEndian.Uint64(body[64:72]),
		OutputMint:   base58.Encode(body[72:104]),
		OutputAmount: binary.LittleEndian.Uint64(body[104:112]),
	}, true
}
