package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"healthsync/application/ports"
	"healthsync/domain/chat"
	"healthsync/domain/health"
	domainsync "healthsync/domain/sync"
	pkgerrors "healthsync/pkg/errors"
)

// Downloader pulls recent remote rows into the local cache. Downloaded rows
// are merged by ID and never re-enqueued; the queue only carries local
// changes outward.
type Downloader struct {
	kv       ports.KVStore
	remote   ports.RemoteStore
	identity ports.Identity
	logger   *zap.Logger
}

func NewDownloader(kv ports.KVStore, remote ports.RemoteStore, identity ports.Identity, logger *zap.Logger) *Downloader {
	return &Downloader{kv: kv, remote: remote, identity: identity, logger: logger}
}

// Download fetches recent points, messages and the profile for the current
// user and merges them into local storage. Skipped when offline or signed
// out.
func (d *Downloader) Download(ctx context.Context, since time.Time) (domainsync.DownloadResult, error) {
	userID, ok := d.identity.CurrentUserID()
	if !ok {
		return domainsync.DownloadResult{Skipped: true}, nil
	}
	if !d.remote.Reachable(ctx) {
		return domainsync.DownloadResult{Skipped: true}, nil
	}

	var result domainsync.DownloadResult

	points, err := d.remote.RecentPoints(ctx, userID, since)
	if err != nil {
		return result, pkgerrors.Wrap(err, "download recent points")
	}
	var dups int
	result.Points, dups = d.mergePoints(ctx, points)
	result.Duplicates += dups

	messages, err := d.remote.RecentMessages(ctx, userID, since)
	if err != nil {
		return result, pkgerrors.Wrap(err, "download recent messages")
	}
	result.Messages, dups = d.mergeMessages(ctx, messages)
	result.Duplicates += dups

	profile, err := d.remote.FetchProfile(ctx, userID)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			return result, pkgerrors.Wrap(err, "download profile")
		}
	} else if profile != nil {
		if err := d.kv.SetSensitive(ctx, ports.KeyUserProfile, profile); err != nil {
			return result, err
		}
		result.Profile = true
	}

	d.logger.Info("remote download merged",
		zap.Int("points", result.Points),
		zap.Int("messages", result.Messages),
		zap.Int("duplicates", result.Duplicates),
		zap.Bool("profile", result.Profile),
	)
	return result, nil
}

// mergePoints folds remote points into the cached list, preferring the
// local copy on ID collision. Returns how many were added and how many
// were already present.
func (d *Downloader) mergePoints(ctx context.Context, remote []health.MeasurementPoint) (added, duplicates int) {
	var local []health.MeasurementPoint
	d.kv.Get(ctx, ports.KeyHealthDataPoints, &local)

	seen := make(map[string]struct{}, len(local))
	for _, point := range local {
		seen[point.ID] = struct{}{}
	}

	for _, point := range remote {
		if _, dup := seen[point.ID]; dup {
			duplicates++
			continue
		}
		local = append(local, point)
		seen[point.ID] = struct{}{}
		added++
	}
	if added == 0 {
		return 0, duplicates
	}
	if err := d.kv.Set(ctx, ports.KeyHealthDataPoints, local); err != nil {
		d.logger.Warn("failed to persist merged points", zap.Error(err))
		return 0, duplicates
	}
	return added, duplicates
}

func (d *Downloader) mergeMessages(ctx context.Context, remote []chat.Message) (added, duplicates int) {
	var local []chat.Message
	d.kv.Get(ctx, ports.KeyChatMessages, &local)

	seen := make(map[string]struct{}, len(local))
	for _, msg := range local {
		seen[msg.ID] = struct{}{}
	}

	for _, msg := range remote {
		if _, dup := seen[msg.ID]; dup {
			duplicates++
			continue
		}
		local = append(local, msg)
		seen[msg.ID] = struct{}{}
		added++
	}
	if added == 0 {
		return 0, duplicates
	}
	if err := d.kv.Set(ctx, ports.KeyChatMessages, local); err != nil {
		d.logger.Warn("failed to persist merged messages", zap.Error(err))
		return 0, duplicates
	}
	return added, duplicates
}
