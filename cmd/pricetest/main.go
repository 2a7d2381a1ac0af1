package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agilanloganathan/coinfox/internal/infra"
	"github.com/agilanloganathan/coinfox/internal/market"
)

// One-shot probe: fetch BTC and ETH from every configured REST source
// and print what each returns. Handy for checking API shapes and
// source priority without running the full pipeline.
func main() {
	fmt.Println("=== Coinfox Source Probe ===")
	fmt.Println()

	cfg := infra.DefaultConfig()
	symbols := []string{"BTC", "ETH"}
	if len(os.Args) > 1 {
		symbols = os.Args[1:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, src := range market.DefaultSources(cfg) {
		fmt.Printf("📊 %s (priority %d)\n", src.Name(), src.Priority())

		start := time.Now()
		partials, err := src.Fetch(ctx, symbols)
		if err != nil {
			fmt.Printf("   ERROR: %v\n\n", err)
			continue
		}

		for _, sym := range symbols {
			p, ok := partials[sym]
			if !ok || p.Price == nil {
				fmt.Printf("   %s: no data\n", sym)
				continue
			}
			line := fmt.Sprintf("   %s: $%s", sym, p.Price.StringFixed(2))
			if p.Change24h != nil {
				line += fmt.Sprintf(" (%s%%)", p.Change24h.StringFixed(2))
			}
			if p.Volume24h != nil {
				line += fmt.Sprintf(" vol %s", p.Volume24h.StringFixed(0))
			}
			fmt.Println(line)
		}
		fmt.Printf("   took %v\n\n", time.Since(start).Round(time.Millisecond))
	}

	fmt.Println("✅ Done")
}
