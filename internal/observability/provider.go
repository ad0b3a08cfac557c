package observability

import (
	"context"
	"time"

	"github.com/abhisek/widen/internal/llm"
)

// instrumentedProvider records request latency per purpose label.
type instrumentedProvider struct {
	next    llm.Provider
	metrics *Metrics
}

// InstrumentProvider wraps a provider so every Generate call feeds the
// latency histogram.
func InstrumentProvider(next llm.Provider, m *Metrics) llm.Provider {
	return &instrumentedProvider{next: next, metrics: m}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	purpose := llm.PurposeFrom(ctx)
	if purpose == "" {
		purpose = "unknown"
	}

	start := time.Now()
	resp, err := p.next.Generate(ctx, req)
	p.metrics.LLMLatency.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	return resp, err
}

func (p *instrumentedProvider) ModelID() string {
	return p.next.ModelID()
}
