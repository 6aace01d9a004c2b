package service

import (
	"context"
	"fmt"
	"time"

	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/storage"
)

// FindActiveHold returns the first hold without an end, or nil
func FindActiveHold(holds []*models.Hold) *models.Hold {
	for _, h := range holds {
		if h.IsActive() {
			return h
		}
	}
	return nil
}

// FindLatestEnd returns the latest end among closed holds, or nil
func FindLatestEnd(holds []*models.Hold) *time.Time {
	var latest *time.Time
	for _, h := range holds {
		if h.End == nil {
			continue
		}
		if latest == nil || h.End.After(*latest) {
			end := *h.End
			latest = &end
		}
	}
	return latest
}

// ActiveLabelChecker reports whether a label is held by an active hold on any device
type ActiveLabelChecker struct {
	repo storage.Repository
}

// NewActiveLabelChecker creates a checker reading through repo
func NewActiveLabelChecker(repo storage.Repository) *ActiveLabelChecker {
	return &ActiveLabelChecker{repo: repo}
}

// Check returns true iff any hold referencing label is active
func (c *ActiveLabelChecker) Check(ctx context.Context, label string) (bool, error) {
	holds, err := c.repo.FindHoldsByLabel(ctx, label)
	if err != nil {
		return false, fmt.Errorf("failed to check label %s: %w", label, err)
	}
	return FindActiveHold(holds) != nil, nil
}
