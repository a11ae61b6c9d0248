package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/threadflow/internal/models"
)

func TestExtractDocumentsBasicShape(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`[
		{"id": "42", "title": "Why is X slow?", "user": "alice", "text": "the full body",
		 "date": "2024-01-01", "url": "https://forum.example/42",
		 "comments": [{"user": "bob", "date": "2024-01-01", "text": "same here"}]}
	]`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	require.Len(t, result.Posts, 1)
	post := result.Posts[0]
	assert.Equal(t, "42", post.ID)
	assert.Equal(t, "Why is X slow?", post.Title)
	assert.Equal(t, "42_text", post.TextRef)
	assert.Equal(t, "alice", post.UserName)
	assert.Equal(t, "2024-01-01", post.Date)
	assert.Equal(t, "https://forum.example/42", post.URL)
	assert.Equal(t, 1, post.CommentCount)

	require.Len(t, result.Comments, 1)
	comment := result.Comments[0]
	assert.Equal(t, "42_comment_0", comment.ID)
	assert.Equal(t, "42", comment.PostID)
	assert.Equal(t, "42_comment_0_text", comment.TextRef)
	assert.Equal(t, "bob", comment.UserName)

	assert.Equal(t, "the full body", result.Bodies["42_text"])
	assert.Equal(t, "same here", result.Bodies["42_comment_0_text"])
}

func TestExtractDocumentsDropsItemsWithoutID(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`[
		{"title": "no id here"},
		{"id": "keep-me", "title": "fine"},
		{"id": "", "title": "blank id"}
	]`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	require.Len(t, result.Posts, 1)
	assert.Equal(t, "keep-me", result.Posts[0].ID)
}

func TestExtractDocumentsIdentityPreserved(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`[
		{"id": "p1", "comments": [{}, {}]},
		{"id": "p2", "comments": [{}]}
	]`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	postIDs := make(map[string]bool)
	for _, post := range result.Posts {
		postIDs[post.ID] = true
	}
	for _, comment := range result.Comments {
		assert.True(t, postIDs[comment.PostID],
			"comment %s references post %s not emitted in this pass", comment.ID, comment.PostID)
	}
}

func TestExtractDocumentsCommentCountParity(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`[
		{"id": "a", "comments": [{}, {}, {}]},
		{"id": "b", "comments": []},
		{"id": "c"}
	]`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	counts := make(map[string]int)
	for _, comment := range result.Comments {
		counts[comment.PostID]++
	}
	for _, post := range result.Posts {
		assert.Equal(t, post.CommentCount, counts[post.ID],
			"post %s comment_count must match emitted comments", post.ID)
	}
	assert.Equal(t, 3, result.Posts[0].CommentCount)
	assert.Equal(t, 0, result.Posts[1].CommentCount)
	assert.Equal(t, 0, result.Posts[2].CommentCount)
}

func TestExtractDocumentsCommentIndexesArePositional(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`{"id": "p", "comments": [{"user": "u0"}, {"user": "u1"}, {"user": "u2"}]}`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	require.Len(t, result.Comments, 3)
	assert.Equal(t, "p_comment_0", result.Comments[0].ID)
	assert.Equal(t, "p_comment_1", result.Comments[1].ID)
	assert.Equal(t, "p_comment_2", result.Comments[2].ID)
}

func TestExtractDocumentsTruncatesTitleAndUserName(t *testing.T) {
	longTitle := strings.Repeat("t", 600)
	longUser := strings.Repeat("u", 150)
	items := []models.RawItem{{"id": "x", "title": longTitle, "user": longUser}}

	result := ExtractDocuments(items)

	require.Len(t, result.Posts, 1)
	assert.Len(t, result.Posts[0].Title, TITLE_MAX_LEN)
	assert.Len(t, result.Posts[0].UserName, USER_NAME_MAX_LEN)
}

func TestExtractDocumentsAnonymousDefault(t *testing.T) {
	items := []models.RawItem{{"id": "x", "comments": []any{map[string]any{"date": "2024-01-01"}}}}

	result := ExtractDocuments(items)

	assert.Equal(t, ANONYMOUS_USER, result.Posts[0].UserName)
	assert.Equal(t, ANONYMOUS_USER, result.Comments[0].UserName)
}

func TestExtractDocumentsNumericIDsBecomeStrings(t *testing.T) {
	items, err := models.DecodeRawItems([]byte(`[{"id": 42, "title": "numeric"}]`))
	require.NoError(t, err)

	result := ExtractDocuments(items)

	require.Len(t, result.Posts, 1)
	assert.Equal(t, "42", result.Posts[0].ID)
	assert.Equal(t, "42_text", result.Posts[0].TextRef)
}

func TestExtractDocumentsIsDeterministic(t *testing.T) {
	raw := []byte(`[{"id": "a", "title": "t", "comments": [{"user": "x"}]}, {"id": "b"}]`)

	items1, err := models.DecodeRawItems(raw)
	require.NoError(t, err)
	items2, err := models.DecodeRawItems(raw)
	require.NoError(t, err)

	first := ExtractDocuments(items1)
	second := ExtractDocuments(items2)

	assert.Equal(t, first.Posts, second.Posts)
	assert.Equal(t, first.Comments, second.Comments)
	assert.Equal(t, first.Bodies, second.Bodies)
}

func TestExtractDocumentsEmptyInput(t *testing.T) {
	result := ExtractDocuments(nil)

	assert.Empty(t, result.Posts)
	assert.Empty(t, result.Comments)
	assert.Empty(t, result.Bodies)
}
