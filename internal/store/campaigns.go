package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/outreachkit/prospector/internal/prospect"
)

// CampaignKeyPrefix namespaces campaign rows in the kv table.
const CampaignKeyPrefix = "campaign:"

// Campaigns wraps a Store with campaign marshalling.
type Campaigns struct {
	Store Store
}

// NewKey returns a fresh campaign key: timestamped for insertion ordering,
// uuid-suffixed so concurrent sends never collide.
func NewKey(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", CampaignKeyPrefix, now.UnixMilli(), uuid.New().String())
}

// Put stores the campaign under key. The campaign is immutable from here on.
func (c Campaigns) Put(ctx context.Context, key string, campaign prospect.Campaign) error {
	b, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("encode campaign: %w", err)
	}
	return c.Store.Put(ctx, key, b)
}

// ListAll returns every stored campaign in insertion-key order. Rows that no
// longer parse are dropped rather than failing the listing.
func (c Campaigns) ListAll(ctx context.Context) ([]prospect.Campaign, error) {
	values, err := c.Store.Scan(ctx, CampaignKeyPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]prospect.Campaign, 0, len(values))
	for _, v := range values {
		var campaign prospect.Campaign
		if err := json.Unmarshal(v, &campaign); err != nil {
			continue
		}
		out = append(out, campaign)
	}
	return out, nil
}
