// Package ingest turns pasted text, local files, and web pages into notebook
// sources.
//
// Every source is stored with its raw content and a normalized full text.
// Web pages are fetched with the shared retry policy, reduced to their main
// article with readability, and titled from the article, the <title> element,
// the first <h1>, or og:title, in that order. When a transformer is attached
// the default transformation runs right after a source is stored; its
// failures are logged and never undo the ingestion.
package ingest
