package wallet

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadWatchlist reads tracked wallet addresses from a text file, one address
// per line. Blank lines and #-comments are skipped; every remaining line
// must be a valid address.
func LoadWatchlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer f.Close()

	var addrs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		s := strings.TrimSpace(scanner.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if err := ValidateAddress(s); err != nil {
			return nil, fmt.Errorf("watchlist line %d: %w", line, err)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		addrs = append(addrs, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("watchlist %s contains no addresses", path)
	}
	return addrs, nil
}
