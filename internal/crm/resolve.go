package crm

import (
	"context"
	"fmt"

	"github.com/udipth01/acefone/internal/types"
)

// Resolve maps a phone number to exactly one CRM entity. Tie-break policy:
// a lead beats a contact, and within a kind the numerically largest id
// wins. The max-id rule treats Bitrix's monotonically increasing ids as a
// "most recently created" proxy; it is a documented heuristic, not a
// provider guarantee. When nothing matches, a new lead is created.
func (c *Client) Resolve(ctx context.Context, phone string) (types.CrmEntity, error) {
	p := NormalizePhone(phone)
	if p == "" {
		return types.CrmEntity{}, fmt.Errorf("no phone number to resolve")
	}

	leads, contacts, err := c.FindByPhone(ctx, p)
	if err != nil {
		return types.CrmEntity{}, fmt.Errorf("duplicate search for %s: %w", p, err)
	}

	if id, ok := pickNewest(leads); ok {
		return types.CrmEntity{ID: id, Kind: types.KindLead}, nil
	}
	if id, ok := pickNewest(contacts); ok {
		return types.CrmEntity{ID: id, Kind: types.KindContact}, nil
	}

	id, err := c.CreateLead(ctx, p)
	if err != nil {
		return types.CrmEntity{}, fmt.Errorf("create lead for %s: %w", p, err)
	}
	return types.CrmEntity{ID: id, Kind: types.KindLead}, nil
}

func pickNewest(ids []int64) (int64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	newest := ids[0]
	for _, id := range ids[1:] {
		if id > newest {
			newest = id
		}
	}
	return newest, true
}
