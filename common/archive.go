// Package common holds the S3 client and the published article archive built on it.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/types"

	"github.com/google/uuid"
)

// Snapshot is the archived form of a published article.
type Snapshot struct {
	Article     *types.Article     `json:"article"`
	Corrections []types.Correction `json:"corrections"`
	ArchivedAt  time.Time          `json:"archived_at"`
}

// ArticleArchive writes published articles to S3 as JSON, one object per article.
// A correction rewrites the object with the correction appended.
type ArticleArchive struct {
	s3     *S3
	bucket string
	prefix string
}

func NewArticleArchive(s3 *S3, cfg config.ArchiveConfig) *ArticleArchive {
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &ArticleArchive{s3: s3, bucket: cfg.Bucket, prefix: prefix}
}

func (a *ArticleArchive) Key(id uuid.UUID) string {
	return a.prefix + "articles/" + id.String() + ".json"
}

// Store uploads snap and returns its key.
func (a *ArticleArchive) Store(ctx context.Context, snap Snapshot) (string, error) {
	if snap.Article == nil {
		return "", apperr.Invalid("snapshot has no article")
	}
	if snap.ArchivedAt.IsZero() {
		snap.ArchivedAt = time.Now().UTC()
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}
	key := a.Key(snap.Article.ID)
	if err := a.s3.Put(ctx, a.bucket, key, bytes.NewReader(b), "application/json", "public, max-age=300"); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

// Load reads back the archived snapshot of an article.
func (a *ArticleArchive) Load(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	key := a.Key(id)
	ok, err := a.s3.Exists(ctx, a.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", key, err)
	}
	if !ok {
		return nil, apperr.NotFound("article %s is not archived", id)
	}
	body, err := a.s3.Get(ctx, a.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", key, err)
	}
	defer body.Close()

	var snap Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &snap, nil
}
