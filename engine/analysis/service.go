// Package analysis compares clients against their cluster peers and summarises the
// community.
package analysis

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fintech-community/peerbench/engine/matcher"
	"github.com/fintech-community/peerbench/engine/table"
	"github.com/fintech-community/peerbench/engine/types"
)

// Service exposes peer comparisons over one loaded feature table
type Service interface {
	// Comparison operations
	LookupByID(ctx context.Context, clientID string) (*types.ComparisonResult, error)
	LookupByProfile(ctx context.Context, profile types.PartialProfile) (*types.ComparisonResult, error)

	// Community operations
	CommunitySummary(ctx context.Context) (*types.AggregateStats, error)
	ClusterProfiles(ctx context.Context) ([]types.ClusterProfile, error)

	SnapshotID() string
}

type service struct {
	table      *table.FeatureTable
	matcher    *matcher.Matcher
	comparator *PeerComparator
	community  *CommunityAggregator
	log        logrus.FieldLogger
}

// NewService creates the comparison service. The table is shared read-only by every call.
func NewService(t *table.FeatureTable, log logrus.FieldLogger) Service {
	return &service{
		table:      t,
		matcher:    matcher.New(t, log),
		comparator: NewPeerComparator(t),
		community:  NewCommunityAggregator(t),
		log:        log.WithField("component", "analysis-service"),
	}
}

func (s *service) SnapshotID() string {
	return s.table.SnapshotID()
}

// LookupByID compares a known client with its own cluster
func (s *service) LookupByID(ctx context.Context, clientID string) (*types.ComparisonResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match, err := s.matcher.MatchByID(clientID)
	if err != nil {
		return nil, err
	}

	cmp := s.comparator.Compare(match.Cluster, match.Profile)
	return &types.ComparisonResult{
		ClientID:           match.ClientID,
		Cluster:            match.Cluster,
		Persona:            match.Persona,
		Comparison:         cmp.Comparison,
		PeerCount:          cmp.PeerCount,
		PercentileRankings: cmp.PercentileRankings,
	}, nil
}

// LookupByProfile places an ad hoc profile in the cluster of its nearest peer and compares
// the profile's own values with that cluster
func (s *service) LookupByProfile(ctx context.Context, profile types.PartialProfile) (*types.ComparisonResult, error) {
	match, err := s.matcher.MatchByProfile(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to match profile: %w", err)
	}

	cmp := s.comparator.Compare(match.Cluster, match.Profile)
	query := match.Profile

	s.log.WithFields(logrus.Fields{
		"matched_client_id": match.ClientID,
		"cluster":           match.Cluster,
		"peer_count":        cmp.PeerCount,
	}).Debug("Compared profile with peers")

	return &types.ComparisonResult{
		MatchedClientID:    match.ClientID,
		Cluster:            match.Cluster,
		Persona:            match.Persona,
		Comparison:         cmp.Comparison,
		PeerCount:          cmp.PeerCount,
		PercentileRankings: cmp.PercentileRankings,
		Profile:            &query,
	}, nil
}

func (s *service) CommunitySummary(ctx context.Context) (*types.AggregateStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.community.Summarize(), nil
}

func (s *service) ClusterProfiles(ctx context.Context) ([]types.ClusterProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.community.ClusterProfiles(), nil
}
