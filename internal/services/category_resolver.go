package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ledger/internal/core"
)

// CategoryResolver turns a list of category titles into stored Category
// records, creating the ones that do not exist yet. It does one read and at
// most one batched write regardless of how many titles are requested, which
// is what keeps bulk import cheap.
type CategoryResolver struct {
	store Store
}

func NewCategoryResolver(store Store) *CategoryResolver {
	return &CategoryResolver{store: store}
}

// Resolve returns one Category per distinct title, covering both existing
// and newly created records. Duplicate and blank titles in the input are
// dropped. A storage error on either phase aborts the whole resolution.
func (r *CategoryResolver) Resolve(ctx context.Context, titles []string) ([]core.Category, error) {
	seen := make(map[string]struct{}, len(titles))
	wanted := make([]string, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		wanted = append(wanted, title)
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	existing, err := r.store.FindCategoriesByTitles(ctx, wanted)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c.Title] = struct{}{}
	}

	var missing []string
	for _, title := range wanted {
		if _, ok := have[title]; !ok {
			missing = append(missing, title)
		}
	}

	if len(missing) == 0 {
		return existing, nil
	}

	created, err := r.store.CreateCategories(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("create categories: %w", err)
	}

	slog.DebugContext(ctx, "Categories resolved",
		"requested", len(wanted),
		"existing", len(existing),
		"created", len(created))

	return append(existing, created...), nil
}
