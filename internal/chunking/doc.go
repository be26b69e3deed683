// Package chunking cuts an ordered notebook corpus into a bounded number of
// text chunks for script generation.
//
// Selection is a pure function of its inputs. Chunks never reorder content,
// every chunk except the last meets the minimum size, and cuts fall on
// whitespace whenever the text allows it.
package chunking
