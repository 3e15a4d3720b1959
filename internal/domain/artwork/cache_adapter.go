package artwork

import (
	"github.com/chorale-player/chorale-backend/internal/infra/cache"
)

// CacheDAOAdapter adapts the cache.DAO to implement the Store interface.
type CacheDAOAdapter struct {
	dao *cache.DAO
}

// NewCacheDAOAdapter creates a new adapter for cache.DAO.
func NewCacheDAOAdapter(dao *cache.DAO) *CacheDAOAdapter {
	return &CacheDAOAdapter{dao: dao}
}

// GetArtwork retrieves cached artwork metadata by key.
func (a *CacheDAOAdapter) GetArtwork(key string) (*CachedArtwork, error) {
	cached, err := a.dao.GetArtwork(key)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, nil
	}

	return &CachedArtwork{
		Key:       cached.Key,
		TrackPath: cached.TrackPath,
		FilePath:  cached.FilePath,
		MimeType:  cached.MimeType,
		Width:     cached.Width,
		Height:    cached.Height,
		FileSize:  cached.FileSize,
		Source:    cached.Source,
		FetchedAt: cached.FetchedAt,
	}, nil
}

// SaveArtwork saves artwork metadata to the cache.
func (a *CacheDAOAdapter) SaveArtwork(art *CachedArtwork) error {
	return a.dao.UpsertArtwork(&cache.CachedArtwork{
		Key:       art.Key,
		TrackPath: art.TrackPath,
		FilePath:  art.FilePath,
		MimeType:  art.MimeType,
		Width:     art.Width,
		Height:    art.Height,
		FileSize:  art.FileSize,
		Source:    art.Source,
		FetchedAt: art.FetchedAt,
	})
}
