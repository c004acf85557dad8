package domain

// Side tells whether a trade or order buys or sells the base currency.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// String returns the exchange wire representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

// SideFromString parses the exchange wire representation. The second return
// value reports whether the input was recognized.
func SideFromString(s string) (Side, bool) {
	switch s {
	case sideStringBuy:
		return SideBuy, true
	case sideStringSell:
		return SideSell, true
	}
	return SideBuy, false
}
