package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/custodia-labs/docsearch/internal/model"
)

func BenchmarkSQLiteMetadataStore_SaveArtifact(b *testing.B) {
	s, _ := NewSQLiteMetadataStore("")
	defer s.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a := sampleArtifact("tenant-bench", fmt.Sprintf("art-%d", i))
		_ = s.SaveArtifact(ctx, a)
	}
}

func BenchmarkSQLiteMetadataStore_SaveChunks_Batch100(b *testing.B) {
	s, _ := NewSQLiteMetadataStore("")
	defer s.Close()
	ctx := context.Background()

	chunks := make([]*model.Chunk, 100)
	for i := range chunks {
		chunks[i] = sampleChunk("tenant-bench", "art-1", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.SaveChunks(ctx, chunks)
	}
}

func BenchmarkSQLiteMetadataStore_GetChunksByArtifact(b *testing.B) {
	s, _ := NewSQLiteMetadataStore("")
	defer s.Close()
	ctx := context.Background()

	chunks := make([]*model.Chunk, 200)
	for i := range chunks {
		chunks[i] = sampleChunk("tenant-bench", "art-1", i)
	}
	_ = s.SaveChunks(ctx, chunks)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.GetChunksByArtifact(ctx, "tenant-bench", "art-1")
	}
}

func BenchmarkSQLiteMetadataStore_ListArtifacts_Page(b *testing.B) {
	s, _ := NewSQLiteMetadataStore("")
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = s.SaveArtifact(ctx, sampleArtifact("tenant-bench", fmt.Sprintf("art-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = s.ListArtifacts(ctx, "tenant-bench", "", 50)
	}
}
