package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/mention"
)

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
	<item>
		<title>Test Corp shares rally on strong results</title>
		<link>https://example.com/a1</link>
		<description>Quarterly profit beat estimates</description>
		<pubDate>Mon, 24 Aug 2026 09:30:00 +0530</pubDate>
		<source>Example Wire</source>
	</item>
	<item>
		<title>Test Corp shares rally on strong results</title>
		<link>https://example.com/a1-dup</link>
		<description>Duplicate headline from another outlet</description>
		<pubDate>Mon, 24 Aug 2026 10:00:00 +0530</pubDate>
	</item>
</channel></rss>`

const redditBody = `{"data":{"children":[
	{"data":{"id":"p1","title":"Is Test Corp a buy?","selftext":"Thinking about the stock",
	 "permalink":"/r/stocks/p1","subreddit":"stocks","score":42,"num_comments":7,"created_utc":1756000000}}
]}}`

func TestFetchMentionsMergesSources(t *testing.T) {
	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rssBody))
	}))
	defer news.Close()

	reddit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(redditBody))
	}))
	defer reddit.Close()

	c := NewMentionCollector(time.Second, WithCollectorURLs(news.URL, reddit.URL, ""))

	mentions, err := c.FetchMentions(context.Background(), "TEST.NS", "Test Corp")
	require.NoError(t, err)

	// rss duplicate collapsed by title, reddit post kept
	require.Len(t, mentions, 2)

	article := mentions[0]
	assert.Equal(t, mention.SourceNews, article.SourceType)
	assert.Equal(t, "https://example.com/a1", article.ExternalID)
	assert.Equal(t, "Example Wire", article.SourceLabel)
	assert.Contains(t, article.Text, "profit beat estimates")
	assert.False(t, article.PublishedAt.IsZero())

	post := mentions[1]
	assert.Equal(t, mention.SourceSocial, post.SourceType)
	assert.Equal(t, "reddit", post.Provider)
	assert.Equal(t, "stocks", post.Metadata["subreddit"])
	assert.Equal(t, float64(42), post.Metadata["score"])
}

func TestFetchMentionsPartialFailure(t *testing.T) {
	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer news.Close()

	reddit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(redditBody))
	}))
	defer reddit.Close()

	c := NewMentionCollector(time.Second, WithCollectorURLs(news.URL, reddit.URL, ""))

	mentions, err := c.FetchMentions(context.Background(), "TEST.NS", "Test Corp")
	require.NoError(t, err, "one source down must not fail the collection")
	assert.Len(t, mentions, 1)
}

func TestFetchMentionsTwitterOnlyWithToken(t *testing.T) {
	var twitterHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			twitterHits++
			w.Write([]byte(`{"data":[{"id":"t1","text":"Test Corp results look strong","author_id":"u1",
				"created_at":"2026-08-24T10:00:00Z","lang":"en",
				"public_metrics":{"like_count":12,"retweet_count":3,"reply_count":1}}]}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	// without a token the twitter source is never called
	c := NewMentionCollector(time.Second, WithCollectorURLs(upstream.URL, upstream.URL, upstream.URL))
	mentions, err := c.FetchMentions(context.Background(), "TEST.NS", "Test Corp")
	require.NoError(t, err)
	assert.Empty(t, mentions)
	assert.Zero(t, twitterHits)

	c = NewMentionCollector(time.Second,
		WithCollectorURLs(upstream.URL, upstream.URL, upstream.URL),
		WithTwitterToken("token"),
	)
	mentions, err = c.FetchMentions(context.Background(), "TEST.NS", "Test Corp")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "twitter", mentions[0].Provider)

	metricsMeta, ok := mentions[0].Metadata["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12), metricsMeta["like_count"])
}

func TestCompanyNameFromSymbol(t *testing.T) {
	assert.Equal(t, "RELIANCE", companyNameFromSymbol("RELIANCE.NS"))
	assert.Equal(t, "TATASTEEL", companyNameFromSymbol("TATASTEEL.BO"))
	assert.Equal(t, "AAPL", companyNameFromSymbol("AAPL"))
}
