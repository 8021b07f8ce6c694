package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/polisai/polis-dag/pkg/domain"
)

// BenchmarkExecutorLinearChain measures per-run overhead of a three node chain.
func BenchmarkExecutorLinearChain(b *testing.B) {
	executor := newTestExecutor(linearChainRegistry(), 1)
	def := linearChain()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := executor.Run(context.Background(), RunRequest{Definition: def}); err != nil {
			b.Fatalf("run failed: %v", err)
		}
	}
}

// BenchmarkExecutorFanOut runs one source feeding 32 echo nodes, sequentially
// and with a bounded worker pool.
func BenchmarkExecutorFanOut(b *testing.B) {
	reg := NewRegistry()
	reg.RegisterFunc("const", constRunner("payload"))
	reg.RegisterFunc("echo", echoRunner())

	def := &domain.PipelineDefinition{Name: "fan-out", Nodes: []domain.NodeDefinition{node("src", "const", nil)}}
	for i := 0; i < 32; i++ {
		id := "echo-" + strconv.Itoa(i)
		def.Nodes = append(def.Nodes, node(id, "echo", nil))
		def.Edges = append(def.Edges, edge("src", id))
	}

	for _, parallelism := range []int{1, 8} {
		b.Run("parallelism="+strconv.Itoa(parallelism), func(b *testing.B) {
			executor := newTestExecutor(reg, parallelism)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := executor.Run(context.Background(), RunRequest{Definition: def}); err != nil {
					b.Fatalf("run failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkCatalogLookup measures named pipeline lookup in a populated catalog.
func BenchmarkCatalogLookup(b *testing.B) {
	defs := make([]domain.PipelineDefinition, 0, 100)
	for i := 0; i < 100; i++ {
		defs = append(defs, domain.PipelineDefinition{
			Name:  "bench-pipeline-" + strconv.Itoa(i),
			Nodes: []domain.NodeDefinition{node("only", "const", nil)},
		})
	}
	catalog := NewPipelineCatalog(nil)
	if err := catalog.UpdatePipelines(defs); err != nil {
		b.Fatalf("update: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := catalog.GetPipeline("bench-pipeline-55"); err != nil {
			b.Fatalf("lookup failed: %v", err)
		}
	}
}
