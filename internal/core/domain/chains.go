package domain

import "strconv"

// ChainID is the numeric chain identifier the backend expects in order
// payloads (EVM chain id, or the registered id for non-EVM chains).
type ChainID int64

func (c ChainID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// ChainKind selects the submission strategy for a chain. It is resolved
// once at wiring time; nothing downstream branches on chain names.
type ChainKind string

const (
	// ChainKindEVM pays with two sequential contract calls:
	// approve followed by depositERC20.
	ChainKindEVM ChainKind = "evm"

	// ChainKindAvail pays with a single batched extrinsic:
	// transferKeepAlive plus a remark carrying the order reference.
	ChainKindAvail ChainKind = "avail"
)

// Valid reports whether k is a supported submission strategy.
func (k ChainKind) Valid() bool {
	return k == ChainKindEVM || k == ChainKindAvail
}
