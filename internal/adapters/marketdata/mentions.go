package marketdata

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketpulse/internal/domain/mention"
	"marketpulse/pkg/logger"
)

const (
	defaultNewsFeedURL   = "https://news.google.com/rss/search"
	defaultRedditURL     = "https://www.reddit.com/search.json"
	defaultTwitterURL    = "https://api.twitter.com/2/tweets/search/recent"
	maxArticlesPerSource = 20
)

// MentionCollector pulls raw mentions from the free news feed, the reddit
// search API and (when a bearer token is configured) the twitter recent
// search. Each source failing is a degradation, not an error: the
// collector returns whatever subset succeeded.
type MentionCollector struct {
	newsFeedURL  string
	redditURL    string
	twitterURL   string
	twitterToken string
	httpClient   *http.Client
	log          *logger.Logger
}

var _ mention.Collector = (*MentionCollector)(nil)

// CollectorOption configures the collector
type CollectorOption func(*MentionCollector)

// WithCollectorHTTPClient overrides the default client (used in tests)
func WithCollectorHTTPClient(client *http.Client) CollectorOption {
	return func(c *MentionCollector) { c.httpClient = client }
}

// WithCollectorURLs overrides the upstream endpoints (used in tests)
func WithCollectorURLs(newsFeed, reddit, twitter string) CollectorOption {
	return func(c *MentionCollector) {
		c.newsFeedURL = newsFeed
		c.redditURL = reddit
		c.twitterURL = twitter
	}
}

// WithTwitterToken enables the twitter source
func WithTwitterToken(token string) CollectorOption {
	return func(c *MentionCollector) { c.twitterToken = token }
}

func NewMentionCollector(timeout time.Duration, opts ...CollectorOption) *MentionCollector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &MentionCollector{
		newsFeedURL: defaultNewsFeedURL,
		redditURL:   defaultRedditURL,
		twitterURL:  defaultTwitterURL,
		httpClient:  &http.Client{Timeout: timeout},
		log:         logger.Get().With("component", "collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMentions gathers raw mentions for a symbol from all configured
// sources, deduplicated by title within the batch
func (c *MentionCollector) FetchMentions(ctx context.Context, symbol, companyName string) ([]mention.RawMention, error) {
	if companyName == "" {
		companyName = companyNameFromSymbol(symbol)
	}

	var all []mention.RawMention

	news, err := c.fetchNewsFeed(ctx, companyName)
	if err != nil {
		c.log.Warnw("news feed fetch failed", "symbol", symbol, "error", err)
	}
	all = append(all, news...)

	social, err := c.fetchReddit(ctx, companyName)
	if err != nil {
		c.log.Warnw("reddit fetch failed", "symbol", symbol, "error", err)
	}
	all = append(all, social...)

	if c.twitterToken != "" {
		tweets, err := c.fetchTwitter(ctx, companyName)
		if err != nil {
			c.log.Warnw("twitter fetch failed", "symbol", symbol, "error", err)
		}
		all = append(all, tweets...)
	}

	return dedupByTitle(all), nil
}

// rssFeed covers the subset of RSS 2.0 the news feed emits
type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			Source      string `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (c *MentionCollector) fetchNewsFeed(ctx context.Context, companyName string) ([]mention.RawMention, error) {
	query := url.Values{}
	query.Set("q", companyName+" stock india")
	query.Set("hl", "en-IN")
	query.Set("gl", "IN")
	query.Set("ceid", "IN:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.newsFeedURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, err
	}

	items := feed.Channel.Items
	if len(items) > maxArticlesPerSource {
		items = items[:maxArticlesPerSource]
	}

	mentions := make([]mention.RawMention, 0, len(items))
	for _, item := range items {
		if item.Title == "" {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC1123Z, item.PubDate)

		source := item.Source
		if source == "" {
			source = "Google News"
		}

		mentions = append(mentions, mention.RawMention{
			ExternalID:  item.Link,
			Title:       item.Title,
			Text:        strings.TrimSpace(item.Title + " " + item.Description),
			URL:         item.Link,
			SourceLabel: source,
			SourceType:  mention.SourceNews,
			Provider:    "google_news",
			PublishedAt: publishedAt,
		})
	}
	return mentions, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Permalink   string  `json:"permalink"`
				Subreddit   string  `json:"subreddit"`
				Score       float64 `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *MentionCollector) fetchReddit(ctx context.Context, companyName string) ([]mention.RawMention, error) {
	query := url.Values{}
	query.Set("q", companyName+" stock")
	query.Set("limit", "15")
	query.Set("sort", "new")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.redditURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, err
	}

	mentions := make([]mention.RawMention, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		text := post.Selftext
		if text == "" {
			text = post.Title
		}
		mentions = append(mentions, mention.RawMention{
			ExternalID:  post.ID,
			Title:       post.Title,
			Text:        text,
			URL:         "https://www.reddit.com" + post.Permalink,
			SourceLabel: "reddit",
			SourceType:  mention.SourceSocial,
			Provider:    "reddit",
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			Metadata: mention.Metadata{
				"subreddit":    post.Subreddit,
				"score":        post.Score,
				"num_comments": post.NumComments,
			},
		})
	}
	return mentions, nil
}

type twitterSearch struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		CreatedAt     time.Time `json:"created_at"`
		Lang          string    `json:"lang"`
		PublicMetrics struct {
			LikeCount    float64 `json:"like_count"`
			RetweetCount float64 `json:"retweet_count"`
			ReplyCount   float64 `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (c *MentionCollector) fetchTwitter(ctx context.Context, companyName string) ([]mention.RawMention, error) {
	query := url.Values{}
	query.Set("query", companyName+" (stock OR shares OR results) lang:en -is:retweet")
	query.Set("tweet.fields", "author_id,created_at,lang,public_metrics")
	query.Set("max_results", "20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.twitterURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.twitterToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter returned status %d", resp.StatusCode)
	}

	var search twitterSearch
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, err
	}

	mentions := make([]mention.RawMention, 0, len(search.Data))
	for _, tweet := range search.Data {
		mentions = append(mentions, mention.RawMention{
			ExternalID:  tweet.ID,
			Title:       "Tweet by " + tweet.AuthorID,
			Text:        tweet.Text,
			URL:         "https://twitter.com/i/web/status/" + tweet.ID,
			SourceLabel: "twitter",
			SourceType:  mention.SourceSocial,
			Provider:    "twitter",
			PublishedAt: tweet.CreatedAt,
			Metadata: mention.Metadata{
				"authorId": tweet.AuthorID,
				"language": tweet.Lang,
				"metrics": map[string]interface{}{
					"like_count":    tweet.PublicMetrics.LikeCount,
					"retweet_count": tweet.PublicMetrics.RetweetCount,
					"reply_count":   tweet.PublicMetrics.ReplyCount,
				},
			},
		})
	}
	return mentions, nil
}

func dedupByTitle(mentions []mention.RawMention) []mention.RawMention {
	seen := make(map[string]struct{}, len(mentions))
	out := mentions[:0]
	for _, m := range mentions {
		key := strings.ToLower(strings.TrimSpace(m.Title))
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, m)
	}
	return out
}

func companyNameFromSymbol(symbol string) string {
	name := strings.TrimSuffix(symbol, ".NS")
	return strings.TrimSuffix(name, ".BO")
}
