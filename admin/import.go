package admin

import (
	"context"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/importer"
)

// ImportSource provides parsed candidates for a collection.
type ImportSource interface {
	Candidates(ctx context.Context, kind content.Kind) ([]importer.Candidate, error)
}

// DocumentSource parses candidates out of a profile document.
type DocumentSource struct {
	Source importer.Source
}

func (d DocumentSource) Candidates(ctx context.Context, kind content.Kind) ([]importer.Candidate, error) {
	return importer.Load(ctx, d.Source, kind)
}

// ImportResult summarizes an import run. Failed creates count as neither
// created nor skipped.
type ImportResult struct {
	Created int
	Skipped int
	Failed  []ImportFailure
}

// ImportFailure records a candidate the store refused.
type ImportFailure struct {
	Slug string
	Err  error
}

// slugSet is an immutable set of slugs. With returns a new set sharing the
// receiver's contents.
type slugSet struct {
	base map[string]struct{}
	slug string
	prev *slugSet
}

func newSlugSet(slugs []string) *slugSet {
	base := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		base[s] = struct{}{}
	}
	return &slugSet{base: base}
}

func (s *slugSet) Has(slug string) bool {
	for n := s; n != nil; n = n.prev {
		if n.prev == nil {
			_, ok := n.base[slug]
			return ok
		}
		if n.slug == slug {
			return true
		}
	}
	return false
}

func (s *slugSet) With(slug string) *slugSet {
	return &slugSet{base: s.base, slug: slug, prev: s}
}

type importAcc struct {
	seen   *slugSet
	result ImportResult
}

// Import creates candidates one at a time. A candidate is skipped when its
// slug is empty or already among existing or earlier-created slugs. Each
// create finishes before the next begins, so the store re-checks slug
// uniqueness against records created earlier in the same run.
func Import(ctx context.Context, existing []string, candidates []importer.Candidate, create func(context.Context, content.Input) (string, error)) ImportResult {
	acc := importAcc{seen: newSlugSet(existing)}
	for _, c := range candidates {
		acc = importStep(ctx, acc, c, create)
	}
	return acc.result
}

func importStep(ctx context.Context, acc importAcc, c importer.Candidate, create func(context.Context, content.Input) (string, error)) importAcc {
	if c.Slug == "" || acc.seen.Has(c.Slug) {
		acc.result.Skipped++
		return acc
	}
	if _, err := create(ctx, c.Fields); err != nil {
		acc.result.Failed = append(acc.result.Failed, ImportFailure{Slug: c.Slug, Err: err})
		return acc
	}
	acc.result.Created++
	acc.seen = acc.seen.With(c.Slug)
	return acc
}
