package detector

// Verdict is the outcome of evaluating one detail page
type Verdict struct {
	Accepted bool
	Reason   string
	Positive int
	Negative int
	Price    float64
	HasPrice bool
}

// Strategy decides whether a detail page is worth reporting
type Strategy interface {
	Name() string
	Evaluate(markup string) Verdict
}

// Rejection reasons
const (
	ReasonAccepted      = "accepted"
	ReasonNegative      = "negative keywords"
	ReasonNoPositive    = "no positive keywords"
	ReasonNoPrice       = "no price"
	ReasonAboveMaxPrice = "price above maximum"
)

// GoldStrategy accepts solid gold jewellery at or below MaxPrice
type GoldStrategy struct {
	MaxPrice float64
	Currency string
	scorer   *KeywordScorer
}

// NewGoldStrategy creates the gold strategy
func NewGoldStrategy(maxPrice float64, currency string) *GoldStrategy {
	return &GoldStrategy{
		MaxPrice: maxPrice,
		Currency: currency,
		scorer:   NewGoldScorer(),
	}
}

// Name implements Strategy
func (g *GoldStrategy) Name() string {
	return "gold"
}

// Evaluate implements Strategy
func (g *GoldStrategy) Evaluate(markup string) Verdict {
	v := Verdict{}
	v.Positive, v.Negative = g.scorer.Score(markup)
	v.Price, v.HasPrice = ExtractPrice(markup, g.Currency)

	switch {
	case v.Negative > 0:
		v.Reason = ReasonNegative
	case v.Positive == 0:
		v.Reason = ReasonNoPositive
	case !v.HasPrice:
		v.Reason = ReasonNoPrice
	case v.Price > g.MaxPrice:
		v.Reason = ReasonAboveMaxPrice
	default:
		v.Accepted = true
		v.Reason = ReasonAccepted
	}
	return v
}
