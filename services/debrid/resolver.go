package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"onyxstream/internal/mediaresolve"
	"onyxstream/internal/rescache"
	"onyxstream/models"
)

// errNotReady drives the polling loops: the provider call succeeded but the
// awaited data has not appeared yet.
var errNotReady = errors.New("debrid: torrent not ready")

// Resolver turns a magnet plus file selector into a direct download URL,
// caching successful resolutions so player retries skip the provider dance.
type Resolver struct {
	client       *Client
	cache        *rescache.Cache
	pollAttempts uint
	pollDelay    time.Duration
}

// NewResolver wires a provider client to the resolution cache.
func NewResolver(client *Client, cache *rescache.Cache, pollAttempts int, pollDelay time.Duration) *Resolver {
	if pollAttempts <= 0 {
		pollAttempts = 5
	}
	return &Resolver{
		client:       client,
		cache:        cache,
		pollAttempts: uint(pollAttempts),
		pollDelay:    pollDelay,
	}
}

// Resolve returns a playable source for the magnet, from cache when fresh.
//
// Provider flow on a miss: add magnet, poll for file metadata, select the
// file the selector picks, poll for the generated restricted link, then
// unlock it into a direct URL.
func (r *Resolver) Resolve(ctx context.Context, magnet string, sel models.FileSelector) (models.MagnetResolution, error) {
	key := models.CacheKey(magnet, sel)
	if cached, ok := r.cache.Get(key); ok {
		log.Printf("[debrid] cache hit: selector=%s file=%s", sel, cached.Filename)
		return cached, nil
	}

	start := time.Now()
	log.Printf("[debrid] resolving magnet: selector=%s", sel)

	torrentID, err := r.client.AddMagnet(ctx, magnet)
	if err != nil {
		return models.MagnetResolution{}, err
	}

	info, err := r.pollFileListing(ctx, torrentID)
	if err != nil {
		return models.MagnetResolution{}, err
	}

	files := make([]mediaresolve.File, 0, len(info.Files))
	for _, f := range info.Files {
		files = append(files, mediaresolve.File{ID: f.ID, Path: f.Path, Bytes: f.Bytes})
	}
	file, err := mediaresolve.SelectFile(files, sel)
	if err != nil {
		if errors.Is(err, mediaresolve.ErrNoFiles) {
			return models.MagnetResolution{}, ErrNoFilesAvailable
		}
		return models.MagnetResolution{}, fmt.Errorf("select file: %w", err)
	}
	log.Printf("[debrid] selected file: id=%d path=%q bytes=%d", file.ID, file.Path, file.Bytes)

	if err := r.client.SelectFiles(ctx, torrentID, strconv.Itoa(file.ID)); err != nil {
		return models.MagnetResolution{}, err
	}

	link, err := r.pollDownloadLink(ctx, torrentID)
	if err != nil {
		return models.MagnetResolution{}, err
	}

	unlocked, err := r.client.UnrestrictLink(ctx, link)
	if err != nil {
		return models.MagnetResolution{}, err
	}

	res := models.MagnetResolution{
		MagnetURI:      magnet,
		Selector:       sel,
		URL:            unlocked.Download,
		Filename:       unlocked.Filename,
		ContainerIsMP4: models.IsMP4Name(unlocked.Filename),
	}
	r.cache.Put(key, res)

	log.Printf("[debrid] resolved in %v: file=%s mp4=%t", time.Since(start), res.Filename, res.ContainerIsMP4)
	return res, nil
}

// pollFileListing waits for the provider to surface torrent file metadata.
func (r *Resolver) pollFileListing(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	var info *TorrentInfo
	err := retry.Do(
		func() error {
			current, err := r.client.TorrentInfo(ctx, torrentID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if len(current.Files) == 0 {
				return errNotReady
			}
			info = current
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.pollAttempts),
		retry.Delay(r.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errNotReady) {
			return nil, fmt.Errorf("%w after %d polls", ErrResolutionTimeout, r.pollAttempts)
		}
		return nil, err
	}
	return info, nil
}

// pollDownloadLink waits for the restricted link generated after selection.
func (r *Resolver) pollDownloadLink(ctx context.Context, torrentID string) (string, error) {
	var link string
	err := retry.Do(
		func() error {
			current, err := r.client.TorrentInfo(ctx, torrentID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if len(current.Links) == 0 {
				return errNotReady
			}
			link = current.Links[0]
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.pollAttempts),
		retry.Delay(r.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errNotReady) {
			return "", fmt.Errorf("%w for torrent %s", ErrNoLinksGenerated, torrentID)
		}
		return "", err
	}
	return link, nil
}
