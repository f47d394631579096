package domain

// IndexQuery is a similarity search request against the vector index.
type IndexQuery struct {
	Vector          []float32
	TopK            int
	Namespace       string
	IncludeMetadata bool
}

// Match is one similarity-search hit. Metadata holds the JSON-encoded
// {source, page_numbers} object stored next to the page text.
type Match struct {
	ID       string
	Score    float32
	Text     string
	Metadata string
}

// Passage is a match with decoded citation metadata.
type Passage struct {
	Text        string
	Source      string
	PageNumbers string
}
