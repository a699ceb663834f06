package crm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/udipth01/acefone/internal/types"
)

// AddTimelineComment appends one comment to the entity's activity timeline,
// addressing it as a lead or contact per the entity kind.
func (c *Client) AddTimelineComment(ctx context.Context, entity types.CrmEntity, text string) error {
	payload := map[string]any{
		"fields": map[string]any{
			"ENTITY_ID":   entity.ID,
			"ENTITY_TYPE": string(entity.Kind),
			"COMMENT":     text,
		},
	}
	if _, err := c.call(ctx, "crm.timeline.comment.add", nil, payload); err != nil {
		return fmt.Errorf("add timeline comment to %s %d: %w", entity.Kind, entity.ID, err)
	}
	c.log.WithFields(logrus.Fields{
		"entity_id":   entity.ID,
		"entity_kind": entity.Kind,
		"chars":       len(text),
	}).Info("timeline comment posted")
	return nil
}
