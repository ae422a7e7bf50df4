package conflict

import (
	"strings"
	"time"

	"realtime-collab-be/internal/model"
)

// Resolution is the outcome of resolving one conflict record. Accepted nil
// means the incoming operation is discarded; Deferred means apply must wait
// for a participant (or the timeout fallback).
type Resolution struct {
	Accepted *model.Operation
	Deferred bool
	Note     string
}

// Resolver is the strategy interface. One resolver is selected per session;
// operational transform is the default and fully automatic.
type Resolver interface {
	Strategy() model.ResolutionStrategy
	Resolve(rec *model.ConflictRecord, incoming, committed *model.Operation) (*Resolution, error)
}

// OTResolver trusts the transform engine's deterministic tie-break: the
// transformed operation is accepted as-is and the record closed.
type OTResolver struct{}

func (OTResolver) Strategy() model.ResolutionStrategy { return model.StrategyOperationalTransform }

func (OTResolver) Resolve(rec *model.ConflictRecord, incoming, committed *model.Operation) (*Resolution, error) {
	closeRecord(rec, "merged by operational transform")
	return &Resolution{Accepted: incoming, Note: rec.Resolution}, nil
}

// LWWResolver keeps the operation composed against the later document
// version; on a tie the higher author id wins. The comparison uses
// ComposedVersion, which rebasing never touches, so an op that arrived late
// and was transformed forward still loses to a genuinely later write. The
// committed operation is already applied, so "committed wins" means
// discarding the incoming one.
type LWWResolver struct{}

func (LWWResolver) Strategy() model.ResolutionStrategy { return model.StrategyLastWriteWins }

func (LWWResolver) Resolve(rec *model.ConflictRecord, incoming, committed *model.Operation) (*Resolution, error) {
	if committed == nil || incomingWins(incoming, committed) {
		closeRecord(rec, "last write wins: incoming kept")
		return &Resolution{Accepted: incoming, Note: rec.Resolution}, nil
	}
	closeRecord(rec, "last write wins: incoming discarded")
	return &Resolution{Accepted: nil, Note: rec.Resolution}, nil
}

// ManualResolver defers to participants with edit permission. The session
// coordinator parks the operation and falls back to last-write-wins when the
// configured timeout elapses.
type ManualResolver struct{}

func (ManualResolver) Strategy() model.ResolutionStrategy { return model.StrategyManualResolution }

func (ManualResolver) Resolve(rec *model.ConflictRecord, incoming, committed *model.Operation) (*Resolution, error) {
	rec.Strategy = model.StrategyManualResolution
	return &Resolution{Accepted: incoming, Deferred: true, Note: "awaiting manual resolution"}, nil
}

// ForStrategy returns the resolver implementing the given strategy,
// defaulting to operational transform.
func ForStrategy(s model.ResolutionStrategy) Resolver {
	switch s {
	case model.StrategyLastWriteWins:
		return LWWResolver{}
	case model.StrategyManualResolution:
		return ManualResolver{}
	default:
		return OTResolver{}
	}
}

func incomingWins(incoming, committed *model.Operation) bool {
	if incoming.ComposedVersion != committed.ComposedVersion {
		return incoming.ComposedVersion > committed.ComposedVersion
	}
	return strings.Compare(incoming.AuthorId.String(), committed.AuthorId.String()) > 0
}

func closeRecord(rec *model.ConflictRecord, note string) {
	now := time.Now()
	rec.Resolution = note
	rec.ResolvedAt = &now
}
