package cleaner

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const itemInferencerName = "item_inferencer"

// RandomSource yields uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
}

// ItemChoice is one candidate item for a price with its relative weight
type ItemChoice struct {
	Item   string
	Weight float64
}

// PriceRule maps an exact unit price to its candidate items
type PriceRule struct {
	Price   decimal.Decimal
	Choices []ItemChoice
}

var priceItemTable = []PriceRule{
	{Price: decimal.RequireFromString("1.50"), Choices: []ItemChoice{{Item: "Tea", Weight: 1}}},
	{Price: decimal.RequireFromString("2.00"), Choices: []ItemChoice{{Item: "Coffee", Weight: 1}}},
	{Price: decimal.RequireFromString("1.00"), Choices: []ItemChoice{{Item: "Cookie", Weight: 1}}},
	{Price: decimal.RequireFromString("5.00"), Choices: []ItemChoice{{Item: "Salad", Weight: 1}}},
	{Price: decimal.RequireFromString("4.00"), Choices: []ItemChoice{{Item: "Smoothie", Weight: 1}}},
	{Price: decimal.RequireFromString("3.00"), Choices: []ItemChoice{
		{Item: "Cake", Weight: 0.5},
		{Item: "Juice", Weight: 0.5},
	}},
}

// InferItem returns the item sold at price. Prices compare with exact decimal
// equality, so 3.0 and 3.00 match but 2.999 does not. The random source is only
// consulted for prices with more than one candidate.
func InferItem(price decimal.Decimal, random RandomSource) (string, bool) {
	for _, rule := range priceItemTable {
		if rule.Price.Equal(price) {
			return pickWeighted(rule.Choices, random), true
		}
	}
	return "", false
}

func pickWeighted(choices []ItemChoice, random RandomSource) string {
	if len(choices) == 1 {
		return choices[0].Item
	}
	total := 0.0
	for _, c := range choices {
		total += c.Weight
	}
	r := random.Float64() * total
	for _, c := range choices {
		if r < c.Weight {
			return c.Item
		}
		r -= c.Weight
	}
	return choices[len(choices)-1].Item
}

// ItemInferencer fills missing item labels from the unit price
type ItemInferencer struct {
	Random RandomSource
}

// Name implements Stage
func (ItemInferencer) Name() string { return itemInferencerName }

// Apply implements Stage
func (s ItemInferencer) Apply(b *Batch) {
	inferred, unmapped := 0, 0
	for _, t := range b.Records {
		if t.Item.Valid || !t.PricePerUnit.Valid {
			continue
		}
		item, ok := InferItem(t.PricePerUnit.Decimal, s.Random)
		if !ok {
			unmapped++
			b.journal.Record(itemInferencerName, t, model.ColItem, nil, nil,
				model.OpUnmapped, "no_item_for_price_"+t.PricePerUnit.Decimal.String(), model.FindingAmbiguousMapping)
			continue
		}
		t.Item = sql.NullString{String: item, Valid: true}
		inferred++
		b.journal.Record(itemInferencerName, t, model.ColItem, nil, strPtr(item),
			model.OpInferItem, "from_unit_price", model.FindingNone)
	}

	b.logger.Info("Inferred missing items",
		zap.String("stage", itemInferencerName),
		zap.Int("inferred", inferred),
		zap.Int("unmapped", unmapped))
}
