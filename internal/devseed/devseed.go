// Package devseed populates a development database with sample documents
// and purchases so the viewer can be exercised without a storefront.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Options bundles the dependencies needed for development seeding.
type Options struct {
	DB          *sql.DB
	StorageRoot string
	// UserID receives the seeded purchases. Defaults to the dev auth user.
	UserID string
	Logger *slog.Logger
}

type documentSeed struct {
	id          string
	title       string
	pageCount   int
	storagePath string
	contentType string
	watermark   bool
	purchased   bool
}

func defaultDocumentSeeds() []documentSeed {
	return []documentSeed{
		{
			id:          "11111111-1111-4111-8111-111111111111",
			title:       "Quarterly Market Report",
			pageCount:   42,
			storagePath: "samples/quarterly-market-report.pdf",
			contentType: "application/pdf",
			watermark:   true,
			purchased:   true,
		},
		{
			id:          "22222222-2222-4222-8222-222222222222",
			title:       "API Integration Handbook",
			pageCount:   118,
			storagePath: "samples/api-integration-handbook.pdf",
			contentType: "application/pdf",
			watermark:   true,
			purchased:   true,
		},
		{
			id:          "33333333-3333-4333-8333-333333333333",
			title:       "Security Whitepaper",
			pageCount:   17,
			storagePath: "samples/security-whitepaper.pdf",
			contentType: "application/pdf",
			watermark:   false,
			purchased:   false,
		},
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, opts Options) error {
	if opts.DB == nil {
		return fmt.Errorf("devseed: DB is required")
	}
	userID := opts.UserID
	if userID == "" {
		userID = "dev-user"
	}

	failures := 0
	for _, seed := range defaultDocumentSeeds() {
		if err := seedDocument(ctx, opts.DB, seed); err != nil {
			logError(ctx, opts.Logger, "failed to seed document", seed.title, err)
			failures++
			continue
		}
		if seed.purchased {
			if err := seedPurchase(ctx, opts.DB, userID, seed.id); err != nil {
				logError(ctx, opts.Logger, "failed to seed purchase", seed.title, err)
				failures++
				continue
			}
		}
		if opts.StorageRoot != "" {
			if err := seedObject(opts.StorageRoot, seed); err != nil {
				logError(ctx, opts.Logger, "failed to seed object", seed.title, err)
				failures++
				continue
			}
		}
		if opts.Logger != nil {
			opts.Logger.InfoContext(ctx, "seeded document", "title", seed.title, "id", seed.id)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedDocument(ctx context.Context, db *sql.DB, seed documentSeed) error {
	const q = `
		INSERT INTO documents (id, title, page_count, storage_path, content_type, watermark)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title        = EXCLUDED.title,
			page_count   = EXCLUDED.page_count,
			storage_path = EXCLUDED.storage_path,
			content_type = EXCLUDED.content_type,
			watermark    = EXCLUDED.watermark
	`
	_, err := db.ExecContext(ctx, q,
		seed.id, seed.title, seed.pageCount, seed.storagePath, seed.contentType, seed.watermark)
	return err
}

func seedPurchase(ctx context.Context, db *sql.DB, userID, resourceID string) error {
	const q = `
		INSERT INTO purchases (id, user_id, resource_id, status)
		VALUES (gen_random_uuid(), $1, $2, 'paid')
		ON CONFLICT DO NOTHING
	`
	_, err := db.ExecContext(ctx, q, userID, resourceID)
	return err
}

// seedObject writes a placeholder PDF so the content endpoint has bytes to
// stream. Existing files are left alone.
func seedObject(root string, seed documentSeed) error {
	full := filepath.Join(root, filepath.FromSlash(seed.storagePath))
	if _, err := os.Stat(full); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	body := fmt.Sprintf("%%PDF-1.7\n%% %s (%d pages, dev placeholder)\n", seed.title, seed.pageCount)
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

func logError(ctx context.Context, logger *slog.Logger, msg, title string, err error) {
	if logger == nil {
		return
	}
	logger.ErrorContext(ctx, msg, "title", title, "error", err)
}
