package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

var _ download.Index = (*Store)(nil)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if s.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		if _, err := Open(t.TempDir(), opts); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		rec := model.DownloadRecord{Company: "Acme", Filename: "q1.pdf", SourceURL: "https://acme.test/q1.pdf", DownloadedAt: time.Now()}
		if err := s.InsertDownload(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
		_ = s.Close()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		s, err = Open(dir, opts)
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer s.Close()

		got, err := s.LookupByFilename(context.Background(), "Acme", "q1.pdf")
		if err != nil || got == nil {
			t.Fatalf("expected record after reopen, got %v, %v", got, err)
		}
	})
}

func TestDownloads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	at := time.Date(2025, time.January, 2, 3, 4, 5, 600000000, time.UTC)

	t.Run("insert and lookup", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		rec := model.DownloadRecord{
			Company:      "Acme",
			Filename:     "q1.pdf",
			SourceURL:    "https://acme.test/q1.pdf",
			SizeBytes:    42,
			DownloadedAt: at,
			ContentHash:  "abc",
		}
		if err := s.InsertDownload(ctx, rec); err != nil {
			t.Fatalf("InsertDownload failed: %v", err)
		}

		byURL, err := s.LookupByURL(ctx, "Acme", rec.SourceURL)
		if err != nil {
			t.Fatal(err)
		}
		if byURL == nil {
			t.Fatal("expected record by URL")
		}
		if byURL.Filename != rec.Filename || byURL.SizeBytes != rec.SizeBytes || byURL.ContentHash != rec.ContentHash {
			t.Errorf("LookupByURL = %+v, want %+v", byURL, rec)
		}
		if !byURL.DownloadedAt.Equal(at) {
			t.Errorf("timestamp not preserved: %v", byURL.DownloadedAt)
		}

		byName, err := s.LookupByFilename(ctx, "Acme", "q1.pdf")
		if err != nil {
			t.Fatal(err)
		}
		if byName == nil || byName.SourceURL != rec.SourceURL {
			t.Errorf("unexpected LookupByFilename result %+v", byName)
		}
	})

	t.Run("misses return nil", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		if rec, err := s.LookupByURL(ctx, "Acme", "https://acme.test/none.pdf"); rec != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", rec, err)
		}
		if rec, err := s.LookupByFilename(ctx, "Globex", "q1.pdf"); rec != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", rec, err)
		}
	})

	t.Run("identity is company and filename", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		for _, rec := range []model.DownloadRecord{
			{Company: "Acme", Filename: "q1.pdf", SourceURL: "https://acme.test/old/q1.pdf", DownloadedAt: at},
			{Company: "Acme", Filename: "q1.pdf", SourceURL: "https://acme.test/q1.pdf", DownloadedAt: at.Add(time.Hour)},
			{Company: "Globex", Filename: "q1.pdf", SourceURL: "https://globex.test/q1.pdf", DownloadedAt: at},
		} {
			if err := s.InsertDownload(ctx, rec); err != nil {
				t.Fatal(err)
			}
		}

		acme, err := s.ListDownloads(ctx, "Acme")
		if err != nil {
			t.Fatal(err)
		}
		if len(acme) != 1 || acme[0].SourceURL != "https://acme.test/q1.pdf" {
			t.Errorf("expected the upserted row only, got %+v", acme)
		}
		globex, err := s.ListDownloads(ctx, "Globex")
		if err != nil {
			t.Fatal(err)
		}
		if len(globex) != 1 {
			t.Errorf("expected one Globex row, got %+v", globex)
		}
	})
}

func TestFetchReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	newReport := func(company string, offset time.Duration, failed bool) *model.FetchReport {
		r := &model.FetchReport{
			RunID:           "run-" + offset.String(),
			Company:         company,
			StartedAt:       start.Add(offset),
			FinishedAt:      start.Add(offset + time.Second),
			FinalStage:      model.StageDone,
			LinksFound:      3,
			LinksNew:        1,
			FilesDownloaded: 1,
			Errors:          []model.ErrorEntry{},
		}
		if failed {
			r.FinalStage = model.StageFailed
			r.Errors = append(r.Errors, model.ErrorEntry{Kind: model.ErrKindNetwork, Stage: model.StageFetched, Message: "timeout"})
		}
		return r
	}

	t.Run("latest report", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		if r, err := s.GetLatestFetchReport(ctx, "Acme"); r != nil || err != nil {
			t.Fatalf("expected no report yet, got %v, %v", r, err)
		}

		for _, r := range []*model.FetchReport{
			newReport("Acme", 0, false),
			newReport("Acme", time.Hour, true),
			newReport("Globex", 2*time.Hour, false),
		} {
			if err := s.SaveFetchReport(ctx, r); err != nil {
				t.Fatalf("SaveFetchReport failed: %v", err)
			}
		}

		latest, err := s.GetLatestFetchReport(ctx, "Acme")
		if err != nil {
			t.Fatal(err)
		}
		if latest == nil || latest.RunID != "run-1h0m0s" || !latest.Failed() {
			t.Errorf("unexpected latest report %+v", latest)
		}
		if len(latest.Errors) != 1 || latest.Errors[0].Message != "timeout" {
			t.Errorf("errors not preserved: %+v", latest.Errors)
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		for i := range 3 {
			if err := s.SaveFetchReport(ctx, newReport("Acme", time.Duration(i)*time.Hour, i == 2)); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.SaveFetchReport(ctx, newReport("Globex", 0, false)); err != nil {
			t.Fatal(err)
		}

		history, err := s.GetReportHistory(ctx, "Acme", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(history))
		}
		if history[0].Status != model.RunFailed || history[0].ErrorCount != 1 {
			t.Errorf("expected newest failed run first, got %+v", history[0])
		}
		if !history[0].StartedAt.Equal(start.Add(2 * time.Hour)) {
			t.Errorf("unexpected start time %v", history[0].StartedAt)
		}

		all, err := s.GetReportHistory(ctx, "", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected limit to apply, got %d", len(all))
		}

		byID, err := s.GetFetchReportByID(ctx, history[1].ID)
		if err != nil || byID == nil || byID.RunID != history[1].RunID {
			t.Errorf("GetFetchReportByID mismatch: %+v, %v", byID, err)
		}
	})
}

func TestCompanies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)

	target := model.CompanyTarget{Name: "SoFi Technologies", Ticker: "SOFI", SeedURLs: []string{"https://investors.sofi.com/"}}
	if err := s.UpsertCompany(ctx, target); err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}
	target.Ticker = "SOFI2"
	if err := s.UpsertCompany(ctx, target); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCompany(ctx, model.CompanyTarget{Name: "Chime Financial"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCompany(ctx, "SoFi Technologies")
	if err != nil || got == nil {
		t.Fatalf("expected company, got %v, %v", got, err)
	}
	if got.Ticker != "SOFI2" || len(got.SeedURLs) != 1 {
		t.Errorf("unexpected row %+v", got)
	}

	if missing, err := s.GetCompany(ctx, "Nope"); missing != nil || err != nil {
		t.Errorf("expected nil, nil; got %v, %v", missing, err)
	}

	all, err := s.ListCompanies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "Chime Financial" {
		t.Errorf("unexpected companies %+v", all)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{"2025-01-02 03:04:05", "2025-01-02T03:04:05Z", "2025-01-02 03:04:05.000000"} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if !parseTimestamp("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
