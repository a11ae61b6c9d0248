package pipeline

import (
	"fmt"

	"github.com/tidewave/threadflow/internal/models"
	"github.com/tidewave/threadflow/internal/utils"
)

// ExtractResult is the flattened output of one extraction pass.
type ExtractResult struct {
	Posts    []models.Post
	Comments []models.Comment

	// Bodies maps each derived text reference to the raw body found on the
	// source item. References whose source carried no body are absent.
	Bodies map[string]string
}

// ExtractDocuments flattens raw dump items into post and comment records.
// Items without an id are dropped silently; one malformed scrape entry is
// not worth failing a whole dump over. Purely structural: no IO, no AI.
func ExtractDocuments(items []models.RawItem) ExtractResult {
	result := ExtractResult{Bodies: make(map[string]string)}

	for _, item := range items {
		id := item.String("id")
		if id == "" {
			continue
		}

		rawComments := item.List("comments")

		post := models.Post{
			ID:           id,
			Title:        utils.TruncateRunes(item.String("title"), TITLE_MAX_LEN),
			TextRef:      fmt.Sprintf("%s_text", id),
			UserName:     userNameOf(item),
			Date:         item.Value("date"),
			URL:          item.String("url"),
			CommentCount: len(rawComments),
		}
		result.Posts = append(result.Posts, post)

		if body := item.String("text"); body != "" {
			result.Bodies[post.TextRef] = body
		}

		for i, rawComment := range rawComments {
			comment := models.Comment{
				ID:       fmt.Sprintf("%s_comment_%d", id, i),
				PostID:   id,
				TextRef:  fmt.Sprintf("%s_comment_%d_text", id, i),
				UserName: userNameOf(rawComment),
				Date:     rawComment.Value("date"),
				URL:      rawComment.String("url"),
			}
			result.Comments = append(result.Comments, comment)

			if body := rawComment.String("text"); body != "" {
				result.Bodies[comment.TextRef] = body
			}
		}
	}

	return result
}

// userNameOf coerces the author field, so storage never sees an empty
// author.
func userNameOf(item models.RawItem) string {
	name := item.String("user")
	if name == "" {
		name = ANONYMOUS_USER
	}
	return utils.TruncateRunes(name, USER_NAME_MAX_LEN)
}
