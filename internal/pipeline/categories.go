package pipeline

const (
	// DEFAULT_CATEGORY is the cluster assigned when classification fails or
	// names a category outside the known set.
	DEFAULT_CATEGORY = "general"

	// NEUTRAL_RELEVANCE pairs with DEFAULT_CATEGORY when no usable score
	// came back.
	NEUTRAL_RELEVANCE = 0.5
)

// Categories is the closed set of topic clusters the classifier may assign.
var Categories = []string{
	"database",
	"api-design",
	"frontend",
	"devops",
	"security",
	"performance",
	"architecture",
	"mobile",
}

var categorySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		set[c] = struct{}{}
	}
	return set
}()

func IsKnownCategory(cluster string) bool {
	_, ok := categorySet[cluster]
	return ok
}
