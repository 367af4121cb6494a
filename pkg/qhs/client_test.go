package qhs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantOutcome Outcome
		wantID      string
		wantMessage string
	}{
		{
			name:        "created",
			status:      http.StatusOK,
			body:        `{"_id": "abc123"}`,
			wantOutcome: Created,
			wantID:      "abc123",
		},
		{
			name:        "created_oid",
			status:      http.StatusCreated,
			body:        `{"_id": {"$oid": "64f0"}}`,
			wantOutcome: Created,
			wantID:      "64f0",
		},
		{
			name:        "not_unique",
			status:      http.StatusOK,
			body:        `{"message": "not unique"}`,
			wantOutcome: Conflict,
			wantMessage: "not unique",
		},
		{
			name:        "already_exists",
			status:      http.StatusConflict,
			body:        `{"message": "Document already exists"}`,
			wantOutcome: Conflict,
			wantMessage: "Document already exists",
		},
		{
			name:        "other_message",
			status:      http.StatusOK,
			body:        `{"message": "some error condition"}`,
			wantOutcome: Transient,
			wantMessage: "some error condition",
		},
		{
			name:        "server_error",
			status:      http.StatusBadGateway,
			body:        `bad gateway`,
			wantOutcome: Transient,
			wantMessage: "bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var doc map[string]any
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
				assert.Equal(t, "c1", doc["cid"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL)
			res, err := client.Post(context.Background(), map[string]any{"cid": "c1"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantID, res.ID)
			assert.Equal(t, tt.wantMessage, res.Message)
			assert.Equal(t, tt.status, res.StatusCode)
		})
	}
}

func TestPost_CustomIDField(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_id": "ignored-is-fine", "doc_id": 42}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, WithIDField("doc_id"), WithRateLimit(100)).Post(context.Background(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, Created, res.Outcome)
	assert.Equal(t, "42", res.ID)
}

func TestPost_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL).Post(context.Background(), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qhs: send request")
}

func TestQuery(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "part::p,part_id::1,process::milling,type::process_qh", r.URL.Query().Get("subject"))
		_, _ = w.Write([]byte(`[{"_id": "a"}, {"_id": "b"}]`))
	}))
	defer srv.Close()

	docs, err := NewClient(srv.URL).Query(context.Background(), "part::p,part_id::1,process::milling,type::process_qh")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[1]["_id"])
}

func TestQuery_SingleObject(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"_id": "a"}`))
	}))
	defer srv.Close()

	docs, err := NewClient(srv.URL).Query(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestQuery_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subject") == "bad-json" {
			_, _ = w.Write([]byte(`{invalid`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Query(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")

	_, err = c.Query(context.Background(), "bad-json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
