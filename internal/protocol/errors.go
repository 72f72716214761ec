package protocol

const (
	// Message validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Routing.
	ErrUnknownAgent = "E_UNKNOWN_AGENT"
	ErrStale        = "E_STALE"

	// Rule/action layer.
	ErrBadAction   = "E_BAD_ACTION"
	ErrBadWeights  = "E_BAD_WEIGHTS"
	ErrCommitted   = "E_COMMITTED"
	ErrCommitEarly = "E_COMMIT_EARLY"
	ErrNotAllowed  = "E_NOT_ALLOWED"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownAgent:    {},
	ErrStale:           {},
	ErrBadAction:       {},
	ErrBadWeights:      {},
	ErrCommitted:       {},
	ErrCommitEarly:     {},
	ErrNotAllowed:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
