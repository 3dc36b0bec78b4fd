package app

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

const mediaPrefix = "media"

// resolveMedia turns media filenames into retrievable URLs. A reference that
// cannot be resolved becomes empty rather than failing the load.
func resolveMedia(ctx context.Context, blobs BlobStore, logger *zap.SugaredLogger, questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.Media = domain.Media{
			Audio:      resolveRef(ctx, blobs, logger, mediaPrefix, q.Media.Audio),
			Video:      resolveRef(ctx, blobs, logger, mediaPrefix, q.Media.Video),
			Image:      resolveRef(ctx, blobs, logger, mediaPrefix, q.Media.Image),
			Background: resolveRef(ctx, blobs, logger, mediaPrefix, q.Media.Background),
		}
		out[i] = q
	}
	return out
}

func resolveRef(ctx context.Context, blobs BlobStore, logger *zap.SugaredLogger, prefix, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || isURL(ref) {
		return ref
	}
	if blobs == nil {
		logger.Warnw("dropping media reference, no blob store configured", "ref", ref)
		return ""
	}
	url, err := blobs.Resolve(ctx, path.Join(prefix, ref))
	if err != nil {
		logger.Warnw("dropping unresolvable media reference", "ref", ref, "error", err)
		return ""
	}
	return url
}

func isURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
