package report

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/firstprinciples/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		Problem:    "Reduce commute time",
		Analysis:   "ANALYSIS_X",
		Assumption: "I must drive",
		Challenge:  "CHALLENGE_Y",
		Solutions:  "SOLUTIONS_Z",
		CreatedAt:  time.Date(2025, 7, 30, 17, 20, 46, 0, time.Local),
	}
}

func TestDocumentRender(t *testing.T) {
	want := "First Principles Problem Solving Session\n" +
		"========================================\n" +
		"\n" +
		"Problem: Reduce commute time\n" +
		"\n" +
		"First Principles Analysis:\n" +
		"ANALYSIS_X\n" +
		"\n" +
		"Challenged Assumption: I must drive\n" +
		"Challenge Response:\n" +
		"CHALLENGE_Y\n" +
		"\n" +
		"Creative Solutions:\n" +
		"SOLUTIONS_Z\n"

	assert.Equal(t, want, sampleDocument().Render())
}

func TestDocumentFilename(t *testing.T) {
	assert.Equal(t, "first_principles_session_20250730_172046.txt", sampleDocument().Filename())
}

func TestFileSinkWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "/reports")
	require.NoError(t, err)

	path, err := sink.Write("a.txt", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/reports", "a.txt"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := afero.ReadDir(fs, "/reports")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type fakeCatalog struct {
	mu      sync.Mutex
	reports []*domain.Report
	err     error
}

func (f *fakeCatalog) SaveReport(_ context.Context, r *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

type countingObserver struct {
	saved, failed int
}

func (c *countingObserver) ObserveReport(saved bool) {
	if saved {
		c.saved++
		return
	}
	c.failed++
}

func TestPublisherPublish(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "/reports")
	require.NoError(t, err)
	catalog := &fakeCatalog{}
	observer := &countingObserver{}
	pub := NewPublisher(sink, WithCatalog(catalog), WithObserver(observer))

	doc := sampleDocument()
	doc.Degraded = []string{"challenge"}
	receipt := pub.For(Owner{UserID: "anon_1", SessionID: "tab-1"}).Emit(context.Background(), doc)

	assert.True(t, receipt.Saved())
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, doc.Filename(), receipt.Filename)
	assert.Equal(t, doc.Render(), receipt.Content)

	data, err := afero.ReadFile(fs, receipt.Path)
	require.NoError(t, err)
	assert.Equal(t, receipt.Content, string(data))

	require.Len(t, catalog.reports, 1)
	entry := catalog.reports[0]
	assert.Equal(t, receipt.ID, entry.ID)
	assert.Equal(t, "anon_1", entry.UserID)
	assert.Equal(t, "tab-1", entry.SessionID)
	assert.Equal(t, []string{"challenge"}, entry.Degraded)
	assert.Equal(t, 1, observer.saved)
}

func TestPublisherSaveFailureKeepsContent(t *testing.T) {
	sink := &FileSink{fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), dir: "/reports"}
	catalog := &fakeCatalog{err: errors.New("catalog down")}
	observer := &countingObserver{}
	pub := NewPublisher(sink, WithCatalog(catalog), WithObserver(observer))

	doc := sampleDocument()
	receipt := pub.Publish(context.Background(), Owner{UserID: "u"}, doc)

	assert.False(t, receipt.Saved())
	assert.NotEmpty(t, receipt.SaveError)
	assert.Empty(t, receipt.Path)
	assert.Equal(t, doc.Render(), receipt.Content)
	assert.Equal(t, doc.Filename(), receipt.Filename)
	assert.Equal(t, 1, observer.failed)
	require.Len(t, catalog.reports, 1)
	assert.Equal(t, receipt.SaveError, catalog.reports[0].SaveError)
}

func TestPublisherIDsAreUnique(t *testing.T) {
	sink, err := NewFileSink(afero.NewMemMapFs(), "/reports")
	require.NoError(t, err)
	pub := NewPublisher(sink)

	doc := sampleDocument()
	first := pub.Publish(context.Background(), Owner{}, doc)
	second := pub.Publish(context.Background(), Owner{}, doc)
	assert.NotEqual(t, first.ID, second.ID)
}
