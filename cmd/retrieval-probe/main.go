package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"legaldoc-backend/bootstrap"
	"legaldoc-backend/config"
	"legaldoc-backend/extract"
	"legaldoc-backend/logger"
	"legaldoc-backend/vectorstore"
)

// Chunks and embeds every document in a directory with the configured
// chunker and embedder, then prints the passages a chat turn would retrieve
// for the query. Useful when tuning CHUNK_SIZE, CHUNK_OVERLAP and the
// embedding provider.
func main() {
	dir := flag.String("dir", "./samples", "directory of .pdf, .docx or .txt documents")
	query := flag.String("q", "", "question to retrieve passages for")
	k := flag.Int("k", 0, "passages per document (default RETRIEVAL_TOP_K)")
	pause := flag.Duration("pause", 0, "pause between documents, for rate-limited embedding APIs")
	flag.Parse()

	if strings.TrimSpace(*query) == "" {
		log.Fatal("-q is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *k <= 0 {
		*k = cfg.Retrieval.TopK
	}

	ctx := context.Background()
	container, err := bootstrap.NewContainer(ctx, cfg, logger.NewNop())
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close(ctx)

	files, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("Failed to read directory: %v", err)
	}

	processed := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		filename := file.Name()
		if _, err := extract.DetectFormat(filename); err != nil {
			continue
		}

		log.Printf("\n📄 Processing: %s", filename)
		text, err := container.Extractor.ExtractFile(ctx, filepath.Join(*dir, filename))
		if err != nil {
			log.Printf("   ❌ Error extracting %s: %v", filename, err)
			continue
		}

		chunks := container.Chunker.Split(text)
		log.Printf("   ✓ Generated %d chunks (size %d, overlap %d)", len(chunks), container.Chunker.Size(), container.Chunker.Overlap())

		store := vectorstore.NewStore(container.Embedder)
		start := time.Now()
		if err := store.Upsert(ctx, chunks); err != nil {
			log.Printf("   ❌ Error embedding chunks: %v", err)
			continue
		}
		log.Printf("   🔄 Embedded in %s (dimension %d)", time.Since(start).Round(time.Millisecond), container.Embedder.Dimension())

		hits, err := store.Search(ctx, *query, *k)
		if err != nil {
			log.Printf("   ❌ Error searching: %v", err)
			continue
		}
		for i, h := range hits {
			fmt.Printf("   [%d] score=%.4f chunk=%d offset=%d\n       %s\n",
				i+1, h.Score, h.Chunk.Index, h.Chunk.Offset, preview(h.Chunk.Text, 160))
		}
		processed++

		if *pause > 0 {
			time.Sleep(*pause)
		}
	}

	log.Printf("\n✅ Retrieval probe complete: %d documents", processed)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
