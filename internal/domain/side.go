package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Side is the outcome token held: YES or NO.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Action is the direction of a trade.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

var tokenIDRe = regexp.MustCompile(`^\d{20,120}$`)

// ParseSide normalizes s (case-insensitive) into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("%w, got %q", ErrInvalidSide, s)
}

// ValidateTokenID checks a CLOB token id before it is used in a URL.
func ValidateTokenID(tokenID string) error {
	if !tokenIDRe.MatchString(tokenID) {
		return fmt.Errorf("%w, got %q", ErrInvalidToken, tokenID)
	}
	return nil
}

// PositionKey identifies an open position inside a portfolio.
type PositionKey struct {
	TokenID string
	Side    Side
}

func (k PositionKey) String() string {
	return k.TokenID + "/" + string(k.Side)
}
