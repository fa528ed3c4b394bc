// Package docs serves the offline text documents searched by the
// search_documents tool. Dir reads *.txt files from one directory, caches
// them, and can watch the directory to drop the cache on change.
package docs
