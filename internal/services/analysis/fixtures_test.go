package analysis

import (
	"chainscope/internal/domain/option_chain"
	"chainscope/internal/services/derivation"
	"chainscope/internal/testsupport"
)

// trendingChain is six snapshots of strike 19500 where CE moves up with rising
// open interest and PE moves down on the same open interest.
func trendingChain() *option_chain.Dataset {
	cePrice := []float64{10, 12, 15, 14, 18, 20}
	pePrice := []float64{20, 18, 15, 16, 12, 10}
	volume := []float64{100, 150, 225, 200, 300, 350}
	oi := []float64{1000, 1100, 1250, 1200, 1400, 1500}
	ceIV := []float64{14, 14.5, 15.5, 15, 16, 17}
	peIV := []float64{18, 17.2, 17.5, 16, 16.4, 15}

	b := testsupport.NewChain()
	for i := range cePrice {
		b.At(i*15, testsupport.Merge(
			testsupport.Quote(option_chain.SideCE, 19500, cePrice[i], volume[i], oi[i], ceIV[i]),
			testsupport.Quote(option_chain.SidePE, 19500, pePrice[i], volume[i], oi[i], peIV[i]),
		))
		// A second strike traded flat all session.
		b.At(i*15, testsupport.Merge(
			testsupport.Quote(option_chain.SideCE, 19600, 5, 10, 3000, 12),
			testsupport.Quote(option_chain.SidePE, 19600, 40, 10, 1000, 20),
		))
	}
	return derivation.Derive(b.Build())
}
