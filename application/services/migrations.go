package services

import (
	"context"

	"healthsync/application/ports"
	"healthsync/domain/health"
	"healthsync/domain/user"
)

// BuiltinMigrations returns the storage migrations shipped with the engine,
// in no particular order; the maintenance service runs them in semver order.
func BuiltinMigrations() []Migration {
	return []Migration{
		{
			Version:     "1.0.0",
			Description: "seed baseline storage keys",
			Apply:       seedBaselineKeys,
		},
		{
			Version:     "1.1.0",
			Description: "clamp point confidence into [0,1]",
			Apply:       clampConfidence,
		},
		{
			Version:     "1.2.0",
			Description: "move user profile to the sensitive partition",
			Apply:       relocateProfile,
		},
	}
}

func seedBaselineKeys(ctx context.Context, kv ports.KVStore) error {
	seeds := map[string]any{
		ports.KeyHealthDataPoints: []health.MeasurementPoint{},
		ports.KeyChatMessages:     []any{},
		ports.KeyDailySummaries:   []any{},
	}
	for key, empty := range seeds {
		var probe any
		if kv.Get(ctx, key, &probe) {
			continue
		}
		if err := kv.Set(ctx, key, empty); err != nil {
			return err
		}
	}
	return nil
}

// clampConfidence repairs points written before confidence validation was
// enforced on ingest.
func clampConfidence(ctx context.Context, kv ports.KVStore) error {
	var points []health.MeasurementPoint
	if !kv.Get(ctx, ports.KeyHealthDataPoints, &points) {
		return nil
	}
	changed := false
	for i := range points {
		if points[i].Confidence < 0 {
			points[i].Confidence = 0
			changed = true
		}
		if points[i].Confidence > 1 {
			points[i].Confidence = 1
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return kv.Set(ctx, ports.KeyHealthDataPoints, points)
}

// relocateProfile moves a profile stored under the general partition by
// early releases into the sensitive partition.
func relocateProfile(ctx context.Context, kv ports.KVStore) error {
	var profile user.Profile
	if !kv.Get(ctx, ports.KeyUserProfile, &profile) {
		return nil
	}
	if err := kv.SetSensitive(ctx, ports.KeyUserProfile, profile); err != nil {
		return err
	}
	return kv.Delete(ctx, ports.KeyUserProfile)
}
