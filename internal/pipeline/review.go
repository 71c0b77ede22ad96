package pipeline

import (
	"context"
	"fmt"
	"strings"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

const defaultApprover = "reviewer"

// Approve confirms product as the match for an item and records an approved
// override for the item's manufacturer code so later runs resolve it directly.
func (s *ProcessingService) Approve(ctx context.Context, itemID, productID int64, approver string) (internal.LineItem, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		approver = defaultApprover
	}

	item, err := s.db.GetLineItem(ctx, itemID)
	if err != nil {
		return internal.LineItem{}, err
	}
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return internal.LineItem{}, err
	}

	outcome := internal.MatchOutcome{
		Status:           internal.StatusApproved,
		Confidence:       confidenceCertain,
		MatchedProductID: util.Int64Ptr(product.ID),
		Note:             util.StringPtr("Manually approved by " + approver),
	}
	if err := s.db.UpdateLineItemMatch(ctx, item.ID, outcome); err != nil {
		return internal.LineItem{}, err
	}

	if sku := strings.TrimSpace(item.EffectiveMfr()); sku != "" {
		_, err := s.db.UpsertApprovedMatch(ctx, internal.ApprovedMatch{
			ExternalSKU:         sku,
			ExternalDescription: item.Description,
			ProductID:           product.ID,
			ApprovedBy:          approver,
			Notes:               "Approved via review",
		})
		if err != nil {
			return internal.LineItem{}, fmt.Errorf("record approved match: %w", err)
		}
	}

	if _, err := s.refreshCounters(ctx, item.UploadID); err != nil {
		return internal.LineItem{}, err
	}
	s.log.Info().Int64("item", item.ID).Int64("product", product.ID).Str("by", approver).Msg("item approved")
	return s.db.GetLineItem(ctx, item.ID)
}

// Reject marks an item as having no equivalent product.
func (s *ProcessingService) Reject(ctx context.Context, itemID int64) (internal.LineItem, error) {
	item, err := s.db.GetLineItem(ctx, itemID)
	if err != nil {
		return internal.LineItem{}, err
	}
	outcome := internal.MatchOutcome{
		Status: internal.StatusRejected,
		Note:   util.StringPtr("No matching product available"),
	}
	if err := s.db.UpdateLineItemMatch(ctx, item.ID, outcome); err != nil {
		return internal.LineItem{}, err
	}
	if _, err := s.refreshCounters(ctx, item.UploadID); err != nil {
		return internal.LineItem{}, err
	}
	s.log.Info().Int64("item", item.ID).Msg("item rejected")
	return s.db.GetLineItem(ctx, item.ID)
}
