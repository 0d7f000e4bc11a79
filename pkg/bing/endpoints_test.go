package bing

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSearchURL(t *testing.T) {
	raw, err := GetSearchURL("", SearchParams{
		Query:      "golden retriever",
		Count:      35,
		Offset:     70,
		Market:     "en-GB",
		SafeSearch: "Strict",
		ImageType:  "Photo",
		Filter:     "Large",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "api.bing.microsoft.com", u.Host)
	assert.Equal(t, "/v7.0/images/search", u.Path)

	q := u.Query()
	assert.Equal(t, "golden retriever", q.Get("q"))
	assert.Equal(t, "35", q.Get("count"))
	assert.Equal(t, "70", q.Get("offset"))
	assert.Equal(t, "en-GB", q.Get("mkt"))
	assert.Equal(t, "Strict", q.Get("safeSearch"))
	assert.Equal(t, "Photo", q.Get("imageType"))
	assert.Equal(t, "Large", q.Get("$filter"))
	assert.False(t, q.Has("minWidth"))
	assert.False(t, q.Has("minHeight"))
}

func TestGetSearchURLErrors(t *testing.T) {
	_, err := GetSearchURL("", SearchParams{Query: "   "})
	assert.Error(t, err)

	_, err = GetSearchURL("not a url", SearchParams{Query: "q"})
	assert.Error(t, err)
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, DefaultCount, ClampCount(0))
	assert.Equal(t, DefaultCount, ClampCount(-5))
	assert.Equal(t, 10, ClampCount(10))
	assert.Equal(t, MaxCount, ClampCount(MaxCount))
	assert.Equal(t, MaxCount, ClampCount(1000))
}

func TestParseOffsetToken(t *testing.T) {
	n, err := ParseOffsetToken("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ParseOffsetToken("150")
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	_, err = ParseOffsetToken("-1")
	assert.Error(t, err)
	_, err = ParseOffsetToken("next")
	assert.Error(t, err)
}

func TestParseContentSize(t *testing.T) {
	assert.Equal(t, int64(123456), ParseContentSize("123456 B"))
	assert.Equal(t, int64(42), ParseContentSize("42"))
	assert.Zero(t, ParseContentSize(""))
	assert.Zero(t, ParseContentSize("big"))
}

func TestParseDatePublished(t *testing.T) {
	got := ParseDatePublished("2023-05-01T10:20:30.0000000Z")
	assert.Equal(t, time.Date(2023, 5, 1, 10, 20, 30, 0, time.UTC), got)

	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), ParseDatePublished("2023-05-01"))
	assert.True(t, ParseDatePublished("yesterday").IsZero())
}

func TestErrorResponseMessage(t *testing.T) {
	var nilResp *ErrorResponse
	assert.Empty(t, nilResp.Message())

	r := &ErrorResponse{Errors: []ErrorDetail{{Code: "x"}, {Message: "second"}}}
	assert.Equal(t, "second", r.Message())

	r.Error = &ErrorDetail{Message: "top"}
	assert.Equal(t, "top", r.Message())
}
