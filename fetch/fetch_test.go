package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/consts"
)

func TestCleanHTML_StripsScriptStyleAndTagsAndCollapsesWhitespace(t *testing.T) {
	raw := `<html><head><style>.a{color:red}</style><script>alert(1)</script></head>
	<body>  <p>Hello   world</p>\n\n<div>Second   paragraph</div></body></html>`
	got := cleanHTML(raw)
	require.False(t, strings.Contains(got, "alert") || strings.Contains(got, "color:red"),
		"expected script/style content stripped, got %q", got)
	require.False(t, strings.Contains(got, "<") || strings.Contains(got, ">"),
		"expected all tags stripped, got %q", got)
	require.False(t, strings.Contains(got, "  "), "expected whitespace runs collapsed, got %q", got)
}

func TestFetch_OKStatusAndTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>" + strings.Repeat("word ", 100) + "</p>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 20)
	pc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, consts.PageStatusOK, pc.Status)
	require.True(t, pc.BytesTruncated, "expected body to be marked truncated")
	require.Len(t, pc.Body, 20)
}

func TestFetch_BlockedStatusOnForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 0)
	pc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, consts.PageStatusBlocked, pc.Status)
}

func TestFetch_ErrorStatusOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 0)
	pc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, consts.PageStatusError, pc.Status)
}

func TestFetch_EmptyStatusWhenBodyHasNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<script>var x=1;</script><style>.a{}</style>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 0)
	pc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, consts.PageStatusEmpty, pc.Status)
}
