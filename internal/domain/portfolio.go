package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Position is one held asset inside a portfolio.
type Position struct {
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
}

// Portfolio maps asset mint to held amount. Two independently-owned
// instances exist at runtime: the peer shadow (inferred from observed
// events, may diverge from ground truth) and the operator's own portfolio
// (mutated only after an own trade confirms).
type Portfolio map[string]*Position

// Amount returns the held amount for asset, zero when untracked.
func (p Portfolio) Amount(asset string) float64 {
	if pos, ok := p[asset]; ok {
		return pos.Amount
	}
	return 0
}

// Clone returns a deep copy. Snapshot persistence serializes clones so a
// concurrent mutation cannot tear a write.
func (p Portfolio) Clone() Portfolio {
	out := make(Portfolio, len(p))
	for k, v := range p {
		cp := *v
		out[k] = &cp
	}
	return out
}

// FormatTable renders the portfolio as an aligned two-column table for the
// logs. Assets are shortened to head...tail form and sorted for stable
// output.
func (p Portfolio) FormatTable(padding int) string {
	if len(p) == 0 {
		return strings.Repeat(" ", padding) + "(empty)"
	}

	assets := make([]string, 0, len(p))
	for asset := range p {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	short := func(asset string) string {
		if len(asset) <= 12 {
			return asset
		}
		return asset[:5] + "..." + asset[len(asset)-4:]
	}

	tokenWidth := len("Token")
	amountWidth := 0
	for _, asset := range assets {
		if w := len(short(asset)); w > tokenWidth {
			tokenWidth = w
		}
		if w := len(fmt.Sprintf("%.2f", p[asset].Amount)); w > amountWidth {
			amountWidth = w
		}
	}

	pad := strings.Repeat(" ", padding)
	var b strings.Builder
	fmt.Fprintf(&b, "%s%-*s | Amount\n", pad, tokenWidth, "Token")
	fmt.Fprintf(&b, "%s%s-|-%s\n", pad, strings.Repeat("-", tokenWidth), strings.Repeat("-", amountWidth))
	for _, asset := range assets {
		fmt.Fprintf(&b, "%s%-*s | %*.2f\n", pad, tokenWidth, short(asset), amountWidth, p[asset].Amount)
	}
	return strings.TrimRight(b.String(), "\n")
}
