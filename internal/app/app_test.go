package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikipath-crawler/internal/app"
	"github.com/JakeFAU/wikipath-crawler/internal/config"
	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	memorypublisher "github.com/JakeFAU/wikipath-crawler/internal/publisher/memory"
	memorystorage "github.com/JakeFAU/wikipath-crawler/internal/storage/memory"
	"github.com/JakeFAU/wikipath-crawler/internal/walker"
)

const base = "https://en.wikipedia.org"

// fakeWiki serves canned article markup keyed by locator.
type fakeWiki struct {
	pages  map[string]string
	random crawler.ArticleRef
}

func (f *fakeWiki) Fetch(_ context.Context, locator string) (crawler.Page, error) {
	body, ok := f.pages[locator]
	if !ok {
		return crawler.Page{}, errors.New("not found")
	}
	return crawler.Page{URL: locator, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeWiki) RandomArticle(context.Context) (crawler.ArticleRef, error) {
	if f.random.Locator == "" {
		return crawler.ArticleRef{}, errors.New("no random article")
	}
	return f.random, nil
}

func page(title, paragraph string) string {
	return `<html><body><h1 id="firstHeading"><span class="mw-page-title-main">` + title + `</span></h1>` +
		`<div id="mw-content-text"><div class="mw-parser-output"><p>` + paragraph + `</p></div></div></body></html>`
}

func chainWiki() *fakeWiki {
	return &fakeWiki{pages: map[string]string{
		base + "/wiki/Physics":         page("Physics", `Physics is a <a href="/wiki/Natural_science">natural science</a>.`),
		base + "/wiki/Natural_science": page("Natural science", `A branch of <a href="/wiki/Philosophy">philosophy</a>.`),
		base + "/wiki/Philosophy":      page("Philosophy", `No links here.`),
	}}
}

func testConfig() config.Config {
	return config.Config{
		Wiki:       config.WikiConfig{BaseURL: base, RequestTimeout: time.Second, Burst: 1},
		Extractor:  config.ExtractorConfig{MaxAttempts: 1},
		Walker:     config.WalkerConfig{Mode: config.ModeDeep},
		Controller: config.ControllerConfig{Workers: 2, SizeCheckInterval: time.Second, StartRetries: 1},
		Storage:    config.StorageConfig{Provider: "memory"},
		Publisher:  config.PublisherConfig{Provider: "memory", Topic: "wiki-paths"},
	}
}

func TestNewWiresMemoryServices(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), zap.NewNop(), app.WithSource(chainWiki()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.NotNil(t, a.Controller())
	require.NotNil(t, a.Walker())
	assert.IsType(t, &memorystorage.PathStore{}, a.Sink())
	assert.IsType(t, &memorypublisher.Publisher{}, a.Publisher())
	assert.Equal(t, "deep", a.Walker().Policy().Name)
	assert.Equal(t, "memory", a.Config().Storage.Provider)
}

func TestRunStoresAndPublishesPaths(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Controller.StartArticles = []string{"Physics"}
	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithSource(chainWiki()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	src, err := a.JobSource()
	require.NoError(t, err)
	summary := a.Controller().Run(context.Background(), src)

	assert.Equal(t, 1, summary.JobsCompleted)
	assert.Equal(t, 1, summary.Stored)

	store := a.Sink().(*memorystorage.PathStore)
	paths := store.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"Physics", "Natural science", "Philosophy"}, paths[0].Path.Titles())
	assert.Equal(t, crawler.OutcomeDeadEnd, paths[0].Outcome.Kind)
	assert.NotEmpty(t, paths[0].JobID)

	pub := a.Publisher().(*memorypublisher.Publisher)
	assert.Len(t, pub.Topic("wiki-paths"), 1)
}

func TestNoopPublisherDisablesEvents(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Publisher.Provider = "noop"
	a, err := app.New(context.Background(), cfg, nil, app.WithSource(chainWiki()))
	require.NoError(t, err)
	assert.Nil(t, a.Publisher())
	require.NoError(t, a.Close())
}

func TestOptionsOverrideConfiguredServices(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Storage.Provider = "postgres"
	cfg.Publisher.Provider = "pubsub"
	sink := memorystorage.NewPathStore()
	pub := memorypublisher.New()

	a, err := app.New(context.Background(), cfg, zap.NewNop(),
		app.WithSource(chainWiki()), app.WithSink(sink), app.WithPublisher(pub))
	require.NoError(t, err)
	assert.Same(t, sink, a.Sink())
	assert.Same(t, pub, a.Publisher())
	require.NoError(t, a.Close())
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"storage", func(c *config.Config) { c.Storage.Provider = "sqlite" }, "unknown storage provider"},
		{"publisher", func(c *config.Config) { c.Publisher.Provider = "kafka" }, "unknown publisher provider"},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Provider = "postgres" }, "init postgres storage"},
		{"pubsub without project", func(c *config.Config) { c.Publisher.Provider = "pubsub" }, "init pubsub publisher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithSource(chainWiki()))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuildPolicy(t *testing.T) {
	t.Parallel()

	deep := app.BuildPolicy(config.WalkerConfig{Mode: config.ModeDeep})
	assert.Equal(t, walker.DefaultDeepSteps, deep.StepBudget)
	assert.True(t, deep.UseGlobalVisited)

	directed := app.BuildPolicy(config.WalkerConfig{Mode: config.ModeDirected, MaxSteps: 10})
	assert.Equal(t, 10, directed.StepBudget)
	assert.Equal(t, walker.DefaultTargetTitle, directed.TargetTitle)
	assert.False(t, directed.UseGlobalVisited)

	depth := app.BuildPolicy(config.WalkerConfig{Mode: config.ModeDirected, TargetDepth: 4})
	assert.Empty(t, depth.TargetTitle)
	assert.Equal(t, 4, depth.TargetDepth)
}

func drain(t *testing.T, a *app.App) []crawler.CrawlJob {
	t.Helper()
	src, err := a.JobSource()
	require.NoError(t, err)
	var jobs []crawler.CrawlJob
	for range 20 {
		job, ok := src.Next(context.Background())
		if !ok {
			break
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func TestJobSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		starts     []string
		random     int
		maxJobs    int
		wantStarts []string
	}{
		{"start articles only", []string{"Physics", base + "/wiki/Chemistry"}, 0, 0, []string{"Physics", "Chemistry"}},
		{"start articles then random", []string{"Physics"}, 2, 0, []string{"Physics", "", ""}},
		{"random only", nil, 3, 0, []string{"", "", ""}},
		{"capped", []string{"A", "B", "C"}, 5, 2, []string{"A", "B"}},
		{"unbounded random capped", nil, 0, 4, []string{"", "", "", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.Controller.StartArticles = tt.starts
			cfg.Controller.RandomArticles = tt.random
			cfg.Controller.MaxJobs = tt.maxJobs
			a, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithSource(chainWiki()))
			require.NoError(t, err)

			var got []string
			for _, job := range drain(t, a) {
				if job.Start == nil {
					got = append(got, "")
					continue
				}
				got = append(got, job.Start.DisplayTitle())
			}
			assert.Equal(t, tt.wantStarts, got)
		})
	}
}

func TestJobSourceRejectsBlankTitle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Controller.StartArticles = []string{"Physics", "  "}
	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.WithSource(chainWiki()))
	require.NoError(t, err)

	_, err = a.JobSource()
	require.ErrorContains(t, err, "start article")
}
