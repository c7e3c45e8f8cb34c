package mcp

// IndexInput addresses a corpus.
type IndexInput struct {
	Name string `json:"name" jsonschema:"corpus name; any text up to 255 bytes that does not start with a dot or contain '..', a slash, a backslash or NUL"`
}

// ListIndexesInput takes no parameters.
type ListIndexesInput struct{}

// AddDocumentInput defines the input schema for the add_document tool.
type AddDocumentInput struct {
	Name  string `json:"name" jsonschema:"corpus name; created on first use"`
	DocID string `json:"doc_id" jsonschema:"document id; an existing document with this id is replaced"`
	Text  string `json:"text" jsonschema:"document text to embed"`
}

// DocumentInput defines the input schema for the remove_document tool.
type DocumentInput struct {
	Name  string `json:"name" jsonschema:"corpus name"`
	DocID string `json:"doc_id" jsonschema:"document id"`
}

// QueryInput defines the input schema for the query tool.
type QueryInput struct {
	Name      string `json:"name" jsonschema:"corpus to search"`
	QueryText string `json:"query_text" jsonschema:"natural language query"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 3"`
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{Name: "create_index", Description: "Create an empty named corpus. Fails if the corpus already exists."},
	{Name: "delete_index", Description: "Delete a corpus and all of its documents."},
	{Name: "list_indexes", Description: "List the names of all corpora."},
	{Name: "add_document", Description: "Embed a document and store it in a corpus, replacing any document with the same id. The corpus is created if needed."},
	{Name: "remove_document", Description: "Remove a document from a corpus."},
	{Name: "list_documents", Description: "List the document ids of a corpus in insertion order."},
	{Name: "query", Description: "Rank the documents of a corpus by semantic similarity to a query and return the best matches with their scores."},
}
