package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/eringen/folio/admin"
	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
	"github.com/eringen/folio/importer"
)

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	kind := fs.String("kind", "posts", "collection to import into: posts or projects")
	file := fs.String("file", "", "profile document path (default IMPORT_FILE)")
	from := fs.String("from", "", "download the document from this URL instead of a file")
	author := fs.String("author", "", "author for imported posts (default SITE_AUTHOR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var src importer.Source = importer.FileSource{Path: cfg.ImportFile}
	switch {
	case *from != "":
		src = importer.HTTPSource{URL: *from}
	case *file != "":
		src = importer.FileSource{Path: *file}
	}
	defaults := importer.Defaults{Author: cfg.Author, RepoURL: cfg.ImportRepoURL}
	if *author != "" {
		defaults.Author = *author
	}

	db, err := docstore.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	var res admin.ImportResult
	switch k := content.Kind(*kind); k {
	case content.KindPost:
		res, err = importInto(ctx, collection.Posts(db, logger), k, src, defaults)
	case content.KindProject:
		res, err = importInto(ctx, collection.Projects(db, logger), k, src, defaults)
	default:
		return fmt.Errorf("unknown kind %q (want posts or projects)", *kind)
	}
	if err != nil {
		return err
	}

	for _, f := range res.Failed {
		logger.Warn("candidate rejected", "slug", f.Slug, "error", f.Err)
	}
	fmt.Printf("Import finished: %d created, %d skipped, %d failed.\n", res.Created, res.Skipped, len(res.Failed))
	if len(res.Failed) > 0 {
		return errors.New("some candidates could not be created")
	}
	return nil
}

func importInto[R content.Record](ctx context.Context, store *collection.Store[R], kind content.Kind, src importer.Source, defaults importer.Defaults) (admin.ImportResult, error) {
	candidates, err := importer.Load(ctx, src, kind)
	if err != nil {
		return admin.ImportResult{}, fmt.Errorf("reading document: %w", err)
	}
	for i := range candidates {
		candidates[i] = defaults.Apply(kind, candidates[i])
	}
	records := store.List(ctx)
	existing := make([]string, 0, len(records))
	for _, r := range records {
		existing = append(existing, r.GetSlug())
	}
	slog.Debug("importing", "kind", string(kind), "candidates", len(candidates), "existing", len(existing))
	return admin.Import(ctx, existing, candidates, store.Create), nil
}
