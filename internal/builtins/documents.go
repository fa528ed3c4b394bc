// ABOUTME: search_documents tool: substring search over the offline text documents.
// ABOUTME: The description lists the document filenames currently available.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/talkai-gateway/internal/docs"
	"github.com/2389/talkai-gateway/internal/packs"
)

// DocumentSearchName is the tool name the model calls.
const DocumentSearchName = "search_documents"

// NoDocumentsMatched is returned when the search finds nothing.
const NoDocumentsMatched = "No documents matched the query."

const documentSeparator = "\n\n---\n\n"

// DocumentSearchTool creates the search_documents tool.
func DocumentSearchTool(store docs.Store) *packs.Tool {
	d := &documentHandlers{store: store}
	return &packs.Tool{
		Name: DocumentSearchName,
		Description: strings.TrimSpace(`
Searches the internal offline documents for a keyword or phrase. The documents are written in
English, so the query must always be in English even when the user writes in another language.
Use it only when the answer could reasonably be in the local documents.`),
		InputSchema: packs.ObjectSchema(map[string]packs.Property{
			"query": {Type: packs.TypeString, Description: "A keyword or phrase to look for in the documents."},
		}, "query"),
		Validate: func(args map[string]any) error {
			if strings.TrimSpace(packs.StringArg(args, "query")) == "" {
				return fmt.Errorf("%w: query must not be empty", packs.ErrSchema)
			}
			return nil
		},
		Detail:  d.Detail,
		Handler: d.Search,
	}
}

type documentHandlers struct {
	store docs.Store
}

// Detail lists the available document filenames.
func (d *documentHandlers) Detail(ctx context.Context) (string, error) {
	names, err := d.store.ListDocuments(ctx)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return "Document filenames: " + string(encoded), nil
}

// Search returns every document whose text contains the query, ignoring case.
func (d *documentHandlers) Search(ctx context.Context, _ *packs.Call, args map[string]any) (string, error) {
	query := strings.ToLower(packs.StringArg(args, "query"))

	documents, err := d.store.ReadAllDocuments(ctx)
	if err != nil {
		return "", fmt.Errorf("reading documents: %w", err)
	}

	var matches []string
	for _, doc := range documents {
		if strings.Contains(strings.ToLower(doc), query) {
			matches = append(matches, doc)
		}
	}
	if len(matches) == 0 {
		return NoDocumentsMatched, nil
	}
	return strings.Join(matches, documentSeparator), nil
}
