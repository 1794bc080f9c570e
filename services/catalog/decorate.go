package catalog

import (
	"context"
	"log"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"suggesterr/models"
	"suggesterr/services/access"
)

// certificationWorkers bounds concurrent rating lookups while decorating a
// page for a restricted profile. Most lookups hit the file cache.
const certificationWorkers = 5

// Decorate marks each item as requested/available for the viewer and, when a
// profile is active, drops items above the profile's rating ceiling. Item
// order is preserved.
func (s *Service) Decorate(ctx context.Context, page models.CatalogPage, profile *models.FamilyProfile) (models.CatalogPage, error) {
	s.markRequested(page.Items, profile)
	s.markAvailable(ctx, page.Items)

	if profile == nil {
		return page, nil
	}

	s.fillCertifications(ctx, page.Items)

	filtered := make([]models.CatalogItem, 0, len(page.Items))
	for _, item := range page.Items {
		if access.IsAppropriate(item.Certification, item.MediaType, profile) {
			filtered = append(filtered, item)
		}
	}
	page.Items = filtered
	return page, nil
}

func (s *Service) markRequested(items []models.CatalogItem, profile *models.FamilyProfile) {
	if s.requests == nil || profile == nil {
		return
	}

	sets := make(map[models.MediaType]map[int64]bool)
	for i := range items {
		mediaType := items[i].MediaType
		set, ok := sets[mediaType]
		if !ok {
			var err error
			set, err = s.requests.RequestedSet(profile.ID, mediaType)
			if err != nil {
				log.Printf("[catalog] requested-set lookup failed: %v", err)
				set = map[int64]bool{}
			}
			sets[mediaType] = set
		}
		if set[items[i].ID] {
			items[i].Requested = true
		}
	}
}

func (s *Service) markAvailable(ctx context.Context, items []models.CatalogItem) {
	var movieIDs, showIDs map[int64]bool
	fetch := func(checker LibraryChecker) map[int64]bool {
		if checker == nil {
			return map[int64]bool{}
		}
		ids, err := checker.LibraryTMDBIDs(ctx)
		if err != nil {
			// Library state is cosmetic; the row still renders. Return a
			// non-nil map so the failed lookup is not retried per item.
			log.Printf("[catalog] library lookup failed: %v", err)
			return map[int64]bool{}
		}
		if ids == nil {
			ids = map[int64]bool{}
		}
		return ids
	}

	for i := range items {
		switch items[i].MediaType {
		case models.MediaTypeMovie:
			if movieIDs == nil {
				movieIDs = fetch(s.movies)
			}
			items[i].Available = movieIDs[items[i].ID]
		case models.MediaTypeTV:
			if showIDs == nil {
				showIDs = fetch(s.shows)
			}
			items[i].Available = showIDs[items[i].ID]
		}
	}
}

// fillCertifications resolves missing ratings so the profile gate can judge
// each item. Lookup failures leave the item unrated, which the gate allows.
func (s *Service) fillCertifications(ctx context.Context, items []models.CatalogItem) {
	var mu sync.Mutex
	workers := pool.New().WithMaxGoroutines(certificationWorkers)
	for i := range items {
		if items[i].Certification != "" {
			continue
		}
		i := i
		workers.Go(func() {
			cert, err := s.tmdb.Certification(ctx, items[i].MediaType, items[i].ID)
			if err != nil {
				log.Printf("[catalog] certification lookup failed for %s %d: %v", items[i].MediaType, items[i].ID, err)
				return
			}
			mu.Lock()
			items[i].Certification = cert
			mu.Unlock()
		})
	}
	workers.Wait()
}
