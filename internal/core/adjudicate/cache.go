package adjudicate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/agenthands/contactsync/internal/core/model"
	gocache "github.com/patrickmn/go-cache"
)

// CachedService remembers successful judgments for identical normalized
// pairs. Re-running a batch over unchanged data then skips the model.
// Errors are never cached.
type CachedService struct {
	svc   ReasoningService
	store *gocache.Cache
}

// NewCachedService wraps svc with a TTL cache. Expired entries are dropped
// lazily on lookup, so no background janitor runs.
func NewCachedService(svc ReasoningService, ttl time.Duration) *CachedService {
	return &CachedService{
		svc:   svc,
		store: gocache.New(ttl, 0),
	}
}

func (c *CachedService) Judge(ctx context.Context, req Request) (Judgment, error) {
	key := cacheKey(req)
	if v, ok := c.store.Get(key); ok {
		return v.(Judgment), nil
	}
	j, err := c.svc.Judge(ctx, req)
	if err != nil {
		return j, err
	}
	c.store.Set(key, j, gocache.DefaultExpiration)
	return j, nil
}

// Len reports the number of cached judgments, expired ones included.
func (c *CachedService) Len() int {
	return c.store.ItemCount()
}

func cacheKey(req Request) string {
	h := sha256.New()
	for _, r := range []model.NormalizedRecord{req.Profile, req.Contact} {
		for _, f := range []model.Field{r.FullName, r.Email, r.Organization, r.Title} {
			h.Write([]byte(f.Value))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
