// Package gavel provides a retrieval-augmented question answering
// service over Sri Lankan legal documents.
//
// Gavel indexes the constitution, acts, bills and gazettes of Sri Lanka
// and answers natural-language questions about them. Retrieval is
// hybrid: dense vector search over FAISS indexes is fused with sparse
// BM25 keyword search using reciprocal rank fusion, and the fused
// context is handed to a language model together with a curated legal
// assistant persona.
//
// # Quick Start
//
// Install Gavel:
//
//	go install github.com/lexlanka/gavel/cmd/gavel@latest
//
// Point it at a data directory containing FAISS indexes, BM25 corpora
// and document metadata, then start the server:
//
//	gavel serve --config gavel.yaml
//
// Ask a question:
//
//	curl -X POST localhost:8000/chat/get_ai_response -d '{"query":"What does the constitution say about language rights?"}'
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/lexlanka/gavel/pkg/qa"
//	    "github.com/lexlanka/gavel/pkg/indexstore"
//	    "github.com/lexlanka/gavel/pkg/retrievers"
//	)
//
// # Architecture
//
// A question flows through a small staged pipeline:
//
//	Client → HTTP API → QA facade → Agent (translate → retrieve → generate) → LLM
//
// The retrieval stage consults every loaded document collection,
// fuses dense and sparse rankings per collection, and merges the
// per-collection results into a single ranked context. Sessions are
// checkpointed after every turn so conversations survive across
// requests.
package gavel
